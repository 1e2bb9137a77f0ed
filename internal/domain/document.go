package domain

import "time"

// Metadata is an open-ended key/value bag attached to documents and vector
// records. Callers attach heterogeneous fields (back-references, counters,
// timestamps), so this stays a loosely-typed mapping rather than a fixed
// struct.
type Metadata map[string]interface{}

// Document represents a raw source file captured at ingestion time.
// Records are immutable once written; there is no update path, only
// bulk-clear via a filtered delete.
type Document struct {
	Name         string    `bson:"name" json:"name"`
	Folder       string    `bson:"folder" json:"folder"`
	RelativePath string    `bson:"relative_path" json:"relative_path"`
	AbsolutePath string    `bson:"absolute_path" json:"absolute_path"`
	Content      string    `bson:"content" json:"content"`
	Size         int       `bson:"size" json:"size"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// VectorRecord pairs a text payload with its embedding. Each record
// references exactly one Document through the document_id metadata field;
// the reference is weak, so deleting the document does not cascade here.
// All embeddings in a collection must share the same dimensionality or the
// vector index over them breaks.
type VectorRecord struct {
	Content   string    `bson:"content" json:"content"`
	Embedding []float32 `bson:"embedding" json:"-"`
	Metadata  Metadata  `bson:"metadata" json:"metadata"`
}

// SearchResult is a single ranked hit returned to callers. The raw embedding
// is never exposed here; it is stripped before results leave the retrieval
// engine. Score semantics depend on the similarity metric the index was
// created with and are not comparable across metrics.
type SearchResult struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// IndexInput is one unit of work for batch indexing: the text to embed plus
// the metadata to persist alongside it.
type IndexInput struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Similarity metrics accepted by the vector index. Fixed at index creation;
// changing the metric means recreating the index.
const (
	SimilarityCosine     = "cosine"
	SimilarityDotProduct = "dotProduct"
	SimilarityEuclidean  = "euclidean"
)

// ValidSimilarity reports whether s names a supported similarity metric.
func ValidSimilarity(s string) bool {
	switch s {
	case SimilarityCosine, SimilarityDotProduct, SimilarityEuclidean:
		return true
	}
	return false
}
