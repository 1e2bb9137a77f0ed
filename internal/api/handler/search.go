package handler

import (
	"fmt"
	"net/http"

	"github.com/davin/policyrag/internal/domain"
	"github.com/davin/policyrag/internal/service"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// searchRequest is the JSON body for POST /api/v1/search. The folder field
// is sugar for a pre-filter on the vector metadata.
type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	Limit      int    `json:"limit"`
	Folder     string `json:"folder,omitempty"`
	Collection string `json:"collection,omitempty"`
	IndexName  string `json:"index_name,omitempty"`
}

// searchResponse is the JSON response for search endpoints.
type searchResponse struct {
	Results []domain.SearchResult `json:"results"`
	Total   int                   `json:"total"`
	Query   string                `json:"query"`
}

// SearchHandler handles semantic search endpoints.
type SearchHandler struct {
	retrieval *service.RetrievalService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - retrieval: retrieval service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

// Search handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	h.doSearch(c, &req)
}

// SearchGet handles GET /api/v1/search for simple queries.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchGet(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	req := searchRequest{
		Query:  query,
		Folder: c.Query("folder"),
	}
	if limit := c.Query("limit"); limit != "" {
		var limitInt int
		if _, err := fmt.Sscanf(limit, "%d", &limitInt); err == nil {
			req.Limit = limitInt
		}
	}

	h.doSearch(c, &req)
}

func (h *SearchHandler) doSearch(c *gin.Context, req *searchRequest) {
	var filter bson.M
	if req.Folder != "" {
		filter = bson.M{"metadata.folder_name": req.Folder}
	}

	results, err := h.retrieval.Search(c.Request.Context(), &service.SearchRequest{
		Query:       req.Query,
		Limit:       req.Limit,
		Collection:  req.Collection,
		IndexName:   req.IndexName,
		FilterQuery: filter,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, searchResponse{
		Results: results,
		Total:   len(results),
		Query:   req.Query,
	})
}
