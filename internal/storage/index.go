// Package storage provides the vector index backends used for semantic
// retrieval over statement chunks: a session-scoped in-memory index and a
// Qdrant-backed index for deployments where the index outlives the process.
package storage

import "context"

// Index is the vector similarity index over statement chunks.
//
// Search results are ordered by descending similarity. Add is atomic for the
// whole batch: either every entry becomes visible or none does, which is what
// lets the indexing pipeline roll back a cancelled document cleanly.
type Index interface {
	// Add inserts a batch of entries. Fails with ErrDimensionMismatch when a
	// vector's dimensionality differs from the index's.
	Add(ctx context.Context, entries []Entry) error

	// Remove deletes every entry belonging to the given document. After it
	// returns, Search never reports a chunk of that document.
	Remove(ctx context.Context, documentID string) error

	// Search returns up to k entries most similar to the query vector.
	Search(ctx context.Context, vector []float32, k int) ([]Scored, error)

	// Count reports the number of entries currently indexed.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
