package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/davin/policyrag/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildVectorSearchPipeline(t *testing.T) {
	tests := []struct {
		name              string
		params            VectorSearchParams
		wantNumCandidates int64
		wantFilter        bool
	}{
		{
			name: "explicit candidates",
			params: VectorSearchParams{
				IndexName:     "vector_index",
				VectorField:   "embedding",
				QueryVector:   []float32{0.1, 0.2},
				Limit:         5,
				NumCandidates: 200,
			},
			wantNumCandidates: 200,
		},
		{
			name: "default candidates",
			params: VectorSearchParams{
				IndexName:   "vector_index",
				VectorField: "embedding",
				QueryVector: []float32{0.1, 0.2},
				Limit:       5,
			},
			wantNumCandidates: 100,
		},
		{
			name: "candidates floored at limit",
			params: VectorSearchParams{
				IndexName:     "vector_index",
				VectorField:   "embedding",
				QueryVector:   []float32{0.1, 0.2},
				Limit:         500,
				NumCandidates: 50,
			},
			wantNumCandidates: 500,
		},
		{
			name: "with filter",
			params: VectorSearchParams{
				IndexName:   "vector_index",
				VectorField: "embedding",
				QueryVector: []float32{0.1, 0.2},
				Limit:       10,
				Filter:      bson.M{"metadata.folder_name": "hr"},
			},
			wantNumCandidates: 100,
			wantFilter:        true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pipeline := buildVectorSearchPipeline(tc.params)

			if len(pipeline) != 2 {
				t.Fatalf("expected 2 pipeline stages, got %d", len(pipeline))
			}

			search := stageValue(t, pipeline[0], "$vectorSearch")
			if got := docValue(search, "numCandidates"); got != tc.wantNumCandidates {
				t.Errorf("numCandidates = %v, want %d", got, tc.wantNumCandidates)
			}
			if got := docValue(search, "index"); got != tc.params.IndexName {
				t.Errorf("index = %v, want %s", got, tc.params.IndexName)
			}
			if got := docValue(search, "path"); got != tc.params.VectorField {
				t.Errorf("path = %v, want %s", got, tc.params.VectorField)
			}
			if got := docValue(search, "limit"); got != tc.params.Limit {
				t.Errorf("limit = %v, want %d", got, tc.params.Limit)
			}

			_, hasFilter := lookupDoc(search, "filter")
			if hasFilter != tc.wantFilter {
				t.Errorf("filter present = %v, want %v", hasFilter, tc.wantFilter)
			}

			// Second stage surfaces the similarity score
			addFields := stageValue(t, pipeline[1], "$addFields")
			if _, ok := lookupDoc(addFields, "score"); !ok {
				t.Error("score field missing from $addFields stage")
			}
		})
	}
}

func TestBuildVectorIndexDefinition(t *testing.T) {
	def := buildVectorIndexDefinition("embedding", 1536, domain.SimilarityCosine)

	fieldsVal, ok := lookupDoc(def, "fields")
	if !ok {
		t.Fatal("definition missing fields key")
	}
	fields, ok := fieldsVal.(bson.A)
	if !ok || len(fields) != 1 {
		t.Fatalf("expected one field spec, got %v", fieldsVal)
	}

	spec, ok := fields[0].(bson.D)
	if !ok {
		t.Fatalf("unexpected field spec type %T", fields[0])
	}
	if got := docValue(spec, "type"); got != "vector" {
		t.Errorf("type = %v, want vector", got)
	}
	if got := docValue(spec, "path"); got != "embedding" {
		t.Errorf("path = %v, want embedding", got)
	}
	if got := docValue(spec, "numDimensions"); got != 1536 {
		t.Errorf("numDimensions = %v, want 1536", got)
	}
	if got := docValue(spec, "similarity"); got != "cosine" {
		t.Errorf("similarity = %v, want cosine", got)
	}
}

func TestCreateVectorSearchIndex_Validation(t *testing.T) {
	manager := NewVectorIndexManager(NewMongoStore(&MongoConnectionConfig{
		URI:      "mongodb://localhost:27017",
		Database: "test",
	}))
	ctx := context.Background()

	tests := []struct {
		name       string
		dimensions int
		similarity string
	}{
		{"unknown similarity", 128, "manhattan"},
		{"zero dimensions", 0, domain.SimilarityCosine},
		{"negative dimensions", -3, domain.SimilarityCosine},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := manager.CreateVectorSearchIndex(ctx, "vectors", "idx", "embedding", tc.dimensions, tc.similarity)
			var idxErr *domain.IndexError
			if !errors.As(err, &idxErr) {
				t.Errorf("expected IndexError, got %v", err)
			}
		})
	}
}

func TestVectorSearch_NotConnected(t *testing.T) {
	manager := NewVectorIndexManager(NewMongoStore(&MongoConnectionConfig{
		URI:      "mongodb://localhost:27017",
		Database: "test",
	}))

	_, err := manager.VectorSearch(context.Background(), VectorSearchParams{
		Collection:  "vectors",
		QueryVector: []float32{0.1},
		Limit:       5,
	})
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

// stageValue extracts the value of a single-key pipeline stage.
func stageValue(t *testing.T, stage bson.D, key string) bson.D {
	t.Helper()
	if len(stage) != 1 || stage[0].Key != key {
		t.Fatalf("expected stage %q, got %v", key, stage)
	}
	doc, ok := stage[0].Value.(bson.D)
	if !ok {
		t.Fatalf("stage %q value has type %T", key, stage[0].Value)
	}
	return doc
}

// lookupDoc finds a key in a bson.D.
func lookupDoc(doc bson.D, key string) (interface{}, bool) {
	for _, elem := range doc {
		if elem.Key == key {
			return elem.Value, true
		}
	}
	return nil, false
}

// docValue returns the value for key, or nil when absent.
func docValue(doc bson.D, key string) interface{} {
	val, _ := lookupDoc(doc, key)
	return val
}
