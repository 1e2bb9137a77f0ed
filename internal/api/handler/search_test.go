package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davin/policyrag/internal/repository"
	"github.com/davin/policyrag/internal/service"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (stubEmbedder) Dimensions() int { return 2 }

type stubStore struct{}

func (stubStore) InsertDocument(ctx context.Context, collection string, doc interface{}) (string, error) {
	return "id-1", nil
}

func (stubStore) InsertDocuments(ctx context.Context, collection string, docs []interface{}) ([]string, error) {
	return nil, nil
}

type stubIndex struct {
	lastParams repository.VectorSearchParams
}

func (s *stubIndex) CreateVectorSearchIndex(ctx context.Context, collection, indexName, vectorField string, dimensions int, similarity string) error {
	return nil
}

func (s *stubIndex) VectorSearch(ctx context.Context, params repository.VectorSearchParams) ([]bson.M, error) {
	s.lastParams = params
	return []bson.M{
		{"_id": "doc-1", "content": "vacation policy", "score": 0.9},
	}, nil
}

func newTestRouter(index *stubIndex) *gin.Engine {
	gin.SetMode(gin.TestMode)

	retrieval := service.NewRetrievalService(stubEmbedder{}, stubStore{}, index, nil, nil)
	handler := NewSearchHandler(retrieval)

	r := gin.New()
	r.POST("/api/v1/search", handler.Search)
	r.GET("/api/v1/search", handler.SearchGet)
	return r
}

func TestSearchHandler_Post(t *testing.T) {
	index := &stubIndex{}
	router := newTestRouter(index)

	body, _ := json.Marshal(map[string]interface{}{
		"query":  "how much vacation do I get",
		"limit":  3,
		"folder": "hr",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
	if resp.Results[0].Content != "vacation policy" {
		t.Errorf("unexpected content: %s", resp.Results[0].Content)
	}

	// The folder shortcut must translate to a metadata pre-filter
	if index.lastParams.Filter["metadata.folder_name"] != "hr" {
		t.Errorf("filter not applied: %v", index.lastParams.Filter)
	}
	if index.lastParams.Limit != 3 {
		t.Errorf("limit = %d, want 3", index.lastParams.Limit)
	}
}

func TestSearchHandler_Post_MissingQuery(t *testing.T) {
	router := newTestRouter(&stubIndex{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader([]byte(`{"limit": 3}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSearchHandler_Get(t *testing.T) {
	index := &stubIndex{}
	router := newTestRouter(index)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=vacation&limit=2&folder=hr", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if index.lastParams.Limit != 2 {
		t.Errorf("limit = %d, want 2", index.lastParams.Limit)
	}
}

func TestSearchHandler_Get_MissingQuery(t *testing.T) {
	router := newTestRouter(&stubIndex{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
