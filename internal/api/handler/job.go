package handler

import (
	"fmt"
	"net/http"

	"github.com/davin/policyrag/internal/repository"
	"github.com/gin-gonic/gin"
)

const defaultJobListLimit = 20

// JobHandler exposes the indexing job ledger.
type JobHandler struct {
	jobs *repository.IndexJobRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: index job repository.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs *repository.IndexJobRepository) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs handles GET /api/v1/jobs, returning the most recent indexing runs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := defaultJobListLimit
	if raw := c.Query("limit"); raw != "" {
		var parsed int
		if _, err := fmt.Sscanf(raw, "%d", &parsed); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := h.jobs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}
