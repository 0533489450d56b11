// Package vector provides the vector index capability contract and its
// PostgreSQL + pgvector adapter. Records are partitioned by namespace so one
// database serves multiple corpora.
package vector

import (
	"context"
	"errors"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrEmptyVector indicates a search or upsert with a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")

	// ErrEmptyNamespace indicates a missing namespace argument.
	ErrEmptyNamespace = errors.New("empty namespace")
)

// Item is a record to upsert into the index.
type Item struct {
	ID        string
	Namespace string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// Match is a single search result. Results are ordered by descending
// similarity; Score is cosine similarity in [0, 1] for normalized inputs.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]string
}

// Index is the capability contract the retrieval pipeline and ingestion
// depend on. Defined consumer-side so tests can substitute a mock.
type Index interface {
	// Upsert inserts or replaces items by (namespace, id).
	Upsert(ctx context.Context, items []Item) error

	// Search returns up to topK matches in the namespace, most similar first.
	Search(ctx context.Context, embedding []float32, topK int, namespace string) ([]Match, error)

	// DeleteNamespace removes every record in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error
}

// AlignVector pads or truncates a vector to the given dimension so embeddings
// from providers with mismatched widths still fit the index column. Padding
// uses zeros; a nil input yields an all-zero vector.
func AlignVector(vec []float32, dimension int) []float32 {
	if len(vec) == dimension {
		return vec
	}
	aligned := make([]float32, dimension)
	copy(aligned, vec)
	return aligned
}
