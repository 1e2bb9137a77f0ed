package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/davin/policyrag/internal/domain"
	"github.com/davin/policyrag/internal/logger"
	"github.com/davin/policyrag/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// EmbeddingProvider generates embeddings for indexing and queries.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// DocumentStore is the subset of store operations the retrieval engine needs.
type DocumentStore interface {
	InsertDocument(ctx context.Context, collection string, doc interface{}) (string, error)
	InsertDocuments(ctx context.Context, collection string, docs []interface{}) ([]string, error)
}

// VectorIndex creates and queries the ANN index over vector records.
type VectorIndex interface {
	CreateVectorSearchIndex(ctx context.Context, collection, indexName, vectorField string, dimensions int, similarity string) error
	VectorSearch(ctx context.Context, params repository.VectorSearchParams) ([]bson.M, error)
}

// RetrievalConfig holds configuration for the retrieval service.
type RetrievalConfig struct {
	DefaultCollection string // default vectors collection
	DefaultIndex      string // default vector search index name
	VectorField       string // field holding the embedding, default "embedding"
	TextField         string // field holding the text content, default "content"
	Similarity        string // similarity metric for new indexes
	NumCandidates     int    // ANN over-fetch for searches
}

// RetrievalService composes the embedding provider, document store, and
// vector index into a single semantic retrieval API, hiding the
// embedding/storage split from callers.
//
// Indexing is not idempotent: indexing the same content twice writes two
// vector records. Callers that re-index must clear first; nothing here
// deduplicates.
type RetrievalService struct {
	embedding         EmbeddingProvider
	store             DocumentStore
	index             VectorIndex
	logger            *logger.Logger
	defaultCollection string
	defaultIndex      string
	vectorField       string
	textField         string
	similarity        string
	numCandidates     int
}

// NewRetrievalService creates a new retrieval service.
// Parameters:
//   - embedding: embedding provider.
//   - store: document store for vector records.
//   - index: vector index manager.
//   - log: logger instance.
//   - cfg: retrieval configuration; zero fields pick defaults.
// Returns:
//   - *RetrievalService: initialized service.
func NewRetrievalService(
	embedding EmbeddingProvider,
	store DocumentStore,
	index VectorIndex,
	log *logger.Logger,
	cfg *RetrievalConfig,
) *RetrievalService {
	if cfg == nil {
		cfg = &RetrievalConfig{}
	}
	s := &RetrievalService{
		embedding:         embedding,
		store:             store,
		index:             index,
		logger:            log,
		defaultCollection: cfg.DefaultCollection,
		defaultIndex:      cfg.DefaultIndex,
		vectorField:       cfg.VectorField,
		textField:         cfg.TextField,
		similarity:        cfg.Similarity,
		numCandidates:     cfg.NumCandidates,
	}
	if s.defaultCollection == "" {
		s.defaultCollection = "vectors"
	}
	if s.defaultIndex == "" {
		s.defaultIndex = "vector_index"
	}
	if s.vectorField == "" {
		s.vectorField = "embedding"
	}
	if s.textField == "" {
		s.textField = "content"
	}
	if s.similarity == "" {
		s.similarity = domain.SimilarityCosine
	}
	return s
}

// log returns a logger from context if available, otherwise the default logger
func (s *RetrievalService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IndexDocument embeds content once and persists one vector record.
// Empty content is rejected with ErrEmptyContent before any network call.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - content: text to index; must be non-empty.
//   - metadata: metadata stored with the vector record; nil becomes empty.
//   - collection: target collection; empty uses the default.
// Returns:
//   - string: id of the new vector record.
//   - error: ErrEmptyContent, *domain.ProviderError, or a store error.
func (s *RetrievalService) IndexDocument(ctx context.Context, content string, metadata domain.Metadata, collection string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domain.ErrEmptyContent
	}
	if collection == "" {
		collection = s.defaultCollection
	}

	embedding, err := s.embedding.Embed(ctx, content)
	if err != nil {
		return "", err
	}

	if metadata == nil {
		metadata = domain.Metadata{}
	}

	doc := bson.M{
		s.textField:   content,
		s.vectorField: embedding,
		"metadata":    metadata,
	}

	id, err := s.store.InsertDocument(ctx, collection, doc)
	if err != nil {
		return "", err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCollection: collection,
		logger.FieldSize:       len(content),
	}).Debug("Indexed document")

	return id, nil
}

// IndexDocuments indexes a batch with a single embedding round-trip.
// Returned ids are position-matched one-to-one to the input, relying on the
// provider's ordering guarantee and the store's ordered batch insert.
// An empty batch returns an empty slice without any remote call.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - documents: content and metadata pairs to index.
//   - collection: target collection; empty uses the default.
// Returns:
//   - []string: ids of the new vector records, one per input.
//   - error: *domain.ProviderError or a store error.
func (s *RetrievalService) IndexDocuments(ctx context.Context, documents []domain.IndexInput, collection string) ([]string, error) {
	if len(documents) == 0 {
		return []string{}, nil
	}
	if collection == "" {
		collection = s.defaultCollection
	}

	contents := make([]string, len(documents))
	for i, doc := range documents {
		contents[i] = doc.Content
	}

	embeddings, err := s.embedding.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(documents) {
		return nil, &domain.ProviderError{
			Op:  "embed_batch",
			Err: fmt.Errorf("got %d embeddings for %d documents", len(embeddings), len(documents)),
		}
	}

	records := make([]interface{}, len(documents))
	for i, doc := range documents {
		metadata := doc.Metadata
		if metadata == nil {
			metadata = domain.Metadata{}
		}
		records[i] = bson.M{
			s.textField:   doc.Content,
			s.vectorField: embeddings[i],
			"metadata":    metadata,
		}
	}

	ids, err := s.store.InsertDocuments(ctx, collection, records)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{logger.FieldCount: len(ids)}).
		Info(ctx, "Indexed document batch: collection=%s", collection)

	return ids, nil
}

// SearchRequest holds the parameters for a semantic search.
type SearchRequest struct {
	Query       string `json:"query" binding:"required"`
	Limit       int    `json:"limit"`
	Collection  string `json:"collection,omitempty"`
	IndexName   string `json:"index_name,omitempty"`
	FilterQuery bson.M `json:"filter_query,omitempty"`
}

// Search embeds the query, runs the ANN lookup, and shapes the results:
// the raw embedding is stripped from every hit and the identifier is
// normalized to string form. Fewer than limit results is normal when the
// index holds fewer matches; under-fill is never padded and never an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: search parameters; Limit <= 0 defaults to 10.
// Returns:
//   - []domain.SearchResult: ranked hits, embedding-free.
//   - error: *domain.ProviderError or a store/index error, propagated as-is.
func (s *RetrievalService) Search(ctx context.Context, req *SearchRequest) ([]domain.SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	collection := req.Collection
	if collection == "" {
		collection = s.defaultCollection
	}
	indexName := req.IndexName
	if indexName == "" {
		indexName = s.defaultIndex
	}

	logger.CtxInfo(ctx, "Performing semantic search: query_len=%d, limit=%d, collection=%s, index=%s",
		len(req.Query), limit, collection, indexName)

	queryVector, err := s.embedding.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	raw, err := s.index.VectorSearch(ctx, repository.VectorSearchParams{
		Collection:    collection,
		IndexName:     indexName,
		VectorField:   s.vectorField,
		QueryVector:   queryVector,
		Limit:         int64(limit),
		NumCandidates: int64(s.numCandidates),
		Filter:        req.FilterQuery,
	})
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(raw))
	for _, doc := range raw {
		results = append(results, s.shapeResult(doc))
	}

	logger.With(logger.Fields{logger.FieldCount: len(results)}).
		Info(ctx, "Search completed: collection=%s", collection)

	return results, nil
}

// shapeResult converts a raw store document into a caller-facing result.
// The embedding field is write-only payload and never re-exposed.
func (s *RetrievalService) shapeResult(doc bson.M) domain.SearchResult {
	delete(doc, s.vectorField)

	result := domain.SearchResult{
		ID: stringifyID(doc["_id"]),
	}
	if content, ok := doc[s.textField].(string); ok {
		result.Content = content
	}
	if score, ok := doc["score"].(float64); ok {
		result.Score = score
	}
	result.Metadata = toMetadata(doc["metadata"])
	return result
}

// SetupIndex creates the vector search index for a collection. Dimensions
// default to the embedding provider's configured dimensionality; an index
// whose dimensionality differs from the provider's will never match, and
// keeping the two aligned across configuration changes is the caller's
// responsibility.
//
// Creation is declarative and the backing engine activates the index
// asynchronously; searches during the build window may come back empty.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: collection to index; empty uses the default.
//   - indexName: index name; empty uses the default.
//   - dimensions: vector dimensionality; <= 0 uses the provider's.
// Returns:
//   - error: *domain.IndexError if creation fails.
func (s *RetrievalService) SetupIndex(ctx context.Context, collection, indexName string, dimensions int) error {
	if collection == "" {
		collection = s.defaultCollection
	}
	if indexName == "" {
		indexName = s.defaultIndex
	}
	if dimensions <= 0 {
		dimensions = s.embedding.Dimensions()
	}

	return s.index.CreateVectorSearchIndex(ctx, collection, indexName, s.vectorField, dimensions, s.similarity)
}

// stringifyID normalizes a store identifier to string form.
func stringifyID(id interface{}) string {
	if id == nil {
		return ""
	}
	if str, ok := id.(string); ok {
		return str
	}
	// ObjectIDs stringify through Hex; their String() form wraps the hex in
	// an ObjectID(...) literal, which is not a stable identifier.
	if hexer, ok := id.(interface{ Hex() string }); ok {
		return hexer.Hex()
	}
	return fmt.Sprintf("%v", id)
}

// toMetadata converts a decoded metadata value into a domain.Metadata map.
// The store decodes nested documents as bson.M, which is already a
// string-keyed map; anything else degrades to an empty bag.
func toMetadata(value interface{}) domain.Metadata {
	switch m := value.(type) {
	case domain.Metadata:
		return m
	case bson.M:
		return domain.Metadata(m)
	case map[string]interface{}:
		return domain.Metadata(m)
	default:
		return domain.Metadata{}
	}
}
