package repository

import (
	"context"
	"fmt"

	"github.com/davin/policyrag/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// defaultNumCandidates is the approximate-search over-fetch floor. Higher
// values trade latency for recall before truncating to the result limit.
const defaultNumCandidates = 100

// VectorIndexManager creates and queries approximate-nearest-neighbor search
// indexes over a vector field of a document collection. It is decoupled from
// the data it indexes; it shares the MongoStore connection but owns no
// collection lifecycle.
type VectorIndexManager struct {
	store *MongoStore
}

// NewVectorIndexManager creates a manager bound to the given store.
func NewVectorIndexManager(store *MongoStore) *VectorIndexManager {
	return &VectorIndexManager{store: store}
}

// CreateVectorSearchIndex issues a declarative create-index request for an
// ANN index over vectorField. Index activation is asynchronous on the backing
// engine: queries issued immediately after creation may see stale or empty
// results until the build finishes. This window is an operational property of
// the engine, not an error, and is not polled here.
//
// The similarity metric is fixed at creation; changing it means recreating
// the index. At most one active index per (collection, vector field) is
// assumed; duplicates are the backing engine's error to raise.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - collection: collection holding the vector records.
//   - indexName: name for the search index.
//   - vectorField: field containing the embeddings.
//   - dimensions: embedding dimensionality; must match the stored vectors.
//   - similarity: one of cosine, dotProduct, euclidean; empty means cosine.
// Returns:
//   - error: *domain.IndexError if validation or creation fails.
func (m *VectorIndexManager) CreateVectorSearchIndex(ctx context.Context, collection, indexName, vectorField string, dimensions int, similarity string) error {
	if similarity == "" {
		similarity = domain.SimilarityCosine
	}
	if !domain.ValidSimilarity(similarity) {
		return &domain.IndexError{Index: indexName, Err: fmt.Errorf("unknown similarity metric %q", similarity)}
	}
	if dimensions <= 0 {
		return &domain.IndexError{Index: indexName, Err: fmt.Errorf("dimensions must be positive, got %d", dimensions)}
	}

	coll, err := m.store.collection(collection)
	if err != nil {
		return err
	}

	model := mongo.SearchIndexModel{
		Definition: buildVectorIndexDefinition(vectorField, dimensions, similarity),
		Options:    options.SearchIndexes().SetName(indexName).SetType("vectorSearch"),
	}

	if _, err := coll.SearchIndexes().CreateOne(ctx, model); err != nil {
		return &domain.IndexError{Index: indexName, Err: err}
	}
	return nil
}

// VectorSearchParams holds the inputs for one ANN lookup.
type VectorSearchParams struct {
	Collection    string
	IndexName     string
	VectorField   string
	QueryVector   []float32
	Limit         int64
	NumCandidates int64
	Filter        bson.M
}

// VectorSearch performs an approximate nearest-neighbor lookup and returns
// ranked documents with a score field. The score carries the similarity
// metric configured at index creation; scores from indexes with different
// metrics are not comparable. Equal-score ordering is whatever the backing
// engine produced, passed through unmodified.
//
// The filter, when present, is applied inside the index traversal as a
// pre-filter, so the result set is not under-filled by post-hoc exclusion.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - params: search parameters; NumCandidates <= 0 selects a default.
// Returns:
//   - []bson.M: ranked documents including a "score" field.
//   - error: non-nil if the search fails.
func (m *VectorIndexManager) VectorSearch(ctx context.Context, params VectorSearchParams) ([]bson.M, error) {
	coll, err := m.store.collection(params.Collection)
	if err != nil {
		return nil, err
	}

	pipeline := buildVectorSearchPipeline(params)

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search on %q failed: %w", params.Collection, err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode vector search results: %w", err)
	}
	return results, nil
}

// buildVectorIndexDefinition builds the vectorSearch index definition body.
func buildVectorIndexDefinition(vectorField string, dimensions int, similarity string) bson.D {
	return bson.D{
		{Key: "fields", Value: bson.A{
			bson.D{
				{Key: "type", Value: "vector"},
				{Key: "path", Value: vectorField},
				{Key: "numDimensions", Value: dimensions},
				{Key: "similarity", Value: similarity},
			},
		}},
	}
}

// buildVectorSearchPipeline builds the $vectorSearch aggregation pipeline.
// The score is surfaced via $meta vectorSearchScore in an $addFields stage.
func buildVectorSearchPipeline(params VectorSearchParams) mongo.Pipeline {
	numCandidates := params.NumCandidates
	if numCandidates <= 0 {
		numCandidates = defaultNumCandidates
	}
	if numCandidates < params.Limit {
		numCandidates = params.Limit
	}

	searchStage := bson.D{
		{Key: "index", Value: params.IndexName},
		{Key: "path", Value: params.VectorField},
		{Key: "queryVector", Value: params.QueryVector},
		{Key: "numCandidates", Value: numCandidates},
		{Key: "limit", Value: params.Limit},
	}
	if len(params.Filter) > 0 {
		searchStage = append(searchStage, bson.E{Key: "filter", Value: params.Filter})
	}

	return mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: searchStage}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}
