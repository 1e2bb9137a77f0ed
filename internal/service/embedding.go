package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/davin/policyrag/internal/domain"
	"github.com/go-resty/resty/v2"
)

const defaultEmbeddingBaseURL = "https://api.openai.com/v1"

// EmbeddingService generates text embeddings through an OpenAI-compatible
// embeddings API. It holds no state beyond configuration; every call is one
// network round-trip.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	dimensions int
	endpoint   string
}

// EmbeddingServiceConfig holds configuration for the embedding service.
type EmbeddingServiceConfig struct {
	Model      string
	APIKey     string
	BaseURL    string // optional alternate endpoint for compatible services
	Dimensions int
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *EmbeddingServiceConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultEmbeddingBaseURL
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		endpoint:   baseURL + "/embeddings",
	}
}

// Model returns the model name being used.
func (s *EmbeddingService) Model() string {
	return s.model
}

// Dimensions returns the configured embedding dimensionality. This is a
// construction-time parameter, never inferred from provider output.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// OpenAI-compatible API request/response structures
type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a single text.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: text to embed; must be non-empty.
// Returns:
//   - []float32: embedding of exactly Dimensions() length.
//   - error: *domain.ProviderError on empty input or a failed remote call.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ProviderError{Op: "embed", Err: fmt.Errorf("input text is empty")}
	}

	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, &domain.ProviderError{Op: "embed", Err: fmt.Errorf("no embedding returned")}
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single round-trip.
// An empty input returns an empty slice without touching the network.
//
// The remote service may return results out of request order; results are
// re-sorted by the response index so that result[i] is always the embedding
// of texts[i]. Dropping that reordering would silently corrupt the
// document-to-vector correspondence downstream.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - texts: texts to embed.
// Returns:
//   - [][]float32: embeddings, position-matched to texts.
//   - error: *domain.ProviderError if the call fails or output is malformed.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{
		Model:      s.model,
		Input:      texts,
		Dimensions: s.dimensions,
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, &domain.ProviderError{Op: "embed_batch", Err: err}
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, &domain.ProviderError{Op: "embed_batch", Err: fmt.Errorf("api error: %s", resp.Error.Message)}
		}
		return nil, &domain.ProviderError{Op: "embed_batch", Err: fmt.Errorf("api error: status %d", httpResp.StatusCode())}
	}

	if len(resp.Data) != len(texts) {
		return nil, &domain.ProviderError{
			Op:  "embed_batch",
			Err: fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts)),
		}
	}

	// Re-sort by index so result order matches input order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, &domain.ProviderError{
				Op:  "embed_batch",
				Err: fmt.Errorf("embedding index %d out of range for %d inputs", item.Index, len(texts)),
			}
		}
		embeddings[item.Index] = item.Embedding
	}

	for i, emb := range embeddings {
		if len(emb) != s.dimensions {
			return nil, &domain.ProviderError{
				Op:  "embed_batch",
				Err: fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(emb), s.dimensions),
			}
		}
	}

	return embeddings, nil
}
