package handler

import (
	"fmt"
	"net/http"

	"github.com/davin/policyrag/internal/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

const defaultDocumentListLimit = 50

// DocumentHandler exposes the raw document records for inspection.
type DocumentHandler struct {
	store      *repository.MongoStore
	collection string
}

// NewDocumentHandler creates a new document handler.
// Parameters:
//   - store: connected document store.
//   - collection: documents collection name.
// Returns:
//   - *DocumentHandler: initialized handler.
func NewDocumentHandler(store *repository.MongoStore, collection string) *DocumentHandler {
	return &DocumentHandler{store: store, collection: collection}
}

// ListDocuments handles GET /api/v1/documents. Supports an optional folder
// filter and a limit. Document content is elided from the listing; only
// record metadata is returned.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	limit := int64(defaultDocumentListLimit)
	if raw := c.Query("limit"); raw != "" {
		var parsed int64
		if _, err := fmt.Sscanf(raw, "%d", &parsed); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	filter := bson.M{}
	if folder := c.Query("folder"); folder != "" {
		filter["folder"] = folder
	}

	docs, err := h.store.FindDocuments(c.Request.Context(), h.collection, filter, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list documents: " + err.Error(),
		})
		return
	}

	items := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		items = append(items, gin.H{
			"id":            fmt.Sprintf("%v", doc["_id"]),
			"name":          doc["name"],
			"folder":        doc["folder"],
			"relative_path": doc["relative_path"],
			"size":          doc["size"],
			"created_at":    doc["created_at"],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": items,
		"total":     len(items),
	})
}
