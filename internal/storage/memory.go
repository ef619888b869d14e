package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is the session-scoped vector index. It holds every entry in
// memory, scores by cosine similarity, and follows a single-writer
// multiple-reader discipline: concurrent searches are safe, mutations take
// the write lock.
//
// Entries keep their insertion order, and result ordering is stable: equal
// scores rank by insertion order. Adds are incremental, no rebuild needed.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []memoryEntry
}

type memoryEntry struct {
	Entry
	unit []float64 // normalized vector, so cosine reduces to a dot product
}

// NewMemoryIndex creates an empty index. The dimensionality is fixed by the
// first batch added; dimension 0 means "not yet determined".
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add inserts all entries or none. The first batch fixes the index
// dimensionality; later batches must match it or fail with
// ErrDimensionMismatch before anything is inserted.
func (m *MemoryIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dimension := m.dimension
	if dimension == 0 {
		dimension = len(entries[0].Vector)
	}
	for i, e := range entries {
		if len(e.Vector) != dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(e.Vector), dimension)
		}
	}

	m.dimension = dimension
	for _, e := range entries {
		m.entries = append(m.entries, memoryEntry{Entry: e, unit: normalize(e.Vector)})
	}
	return nil
}

// Remove deletes every entry of the given document. Entries of other
// documents keep their relative order.
func (m *MemoryIndex) Remove(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// Search returns the k nearest entries by cosine similarity, highest first.
// Ties break by insertion order. An empty index returns no results.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), m.dimension)
	}

	query := normalize(vector)
	results := make([]Scored, 0, len(m.entries))
	for _, e := range m.entries {
		results = append(results, Scored{Entry: e.Entry, Score: dot(query, e.unit)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count reports the number of indexed entries.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryIndex) Close() error { return nil }

// snapshot is the persisted layout: dimensionality, metric identifier and
// the full entry set with provenance, enough to reconstruct citations
// exactly after a reload.
type snapshot struct {
	Dimension int     `json:"dimension"`
	Metric    string  `json:"metric"`
	Entries   []Entry `json:"entries"`
}

// Snapshot serializes the index for session resume.
func (m *MemoryIndex) Snapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := snapshot{
		Dimension: m.dimension,
		Metric:    MetricCosine,
		Entries:   make([]Entry, 0, len(m.entries)),
	}
	for _, e := range m.entries {
		s.Entries = append(s.Entries, e.Entry)
	}
	return json.Marshal(s)
}

// RestoreMemoryIndex reconstructs an index from Snapshot output, preserving
// the original insertion order.
func RestoreMemoryIndex(data []byte) (*MemoryIndex, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Metric != MetricCosine {
		return nil, fmt.Errorf("unsupported similarity metric %q", s.Metric)
	}

	m := NewMemoryIndex()
	if err := m.Add(context.Background(), s.Entries); err != nil {
		return nil, err
	}
	m.dimension = s.Dimension
	return m, nil
}

func normalize(v []float32) []float64 {
	unit := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		unit[i] = float64(x)
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return unit
	}
	inv := 1 / math.Sqrt(sum)
	for i := range unit {
		unit[i] *= inv
	}
	return unit
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
