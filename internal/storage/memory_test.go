package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(chunkID, documentID string, vector ...float32) Entry {
	return Entry{
		ChunkID:      chunkID,
		DocumentID:   documentID,
		DocumentName: documentID + ".pdf",
		Page:         1,
		Content:      "content of " + chunkID,
		Tokens:       4,
		Vector:       vector,
	}
}

func TestMemoryIndex_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Add(ctx, []Entry{
		entry("a", "doc1", 1, 0, 0),
		entry("b", "doc1", 0, 1, 0),
		entry("c", "doc1", 0.9, 0.1, 0),
	}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Entry.ChunkID)
	assert.Equal(t, "c", results[1].Entry.ChunkID)
	assert.Equal(t, "b", results[2].Entry.ChunkID)

	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, -1.0, "result %d below cosine range", i)
		assert.LessOrEqual(t, r.Score, 1.0+1e-9, "result %d above cosine range", i)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score, "results not descending")
		}
	}

	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryIndex_TiesBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	// Identical vectors: identical scores, so ordering must follow insertion.
	require.NoError(t, idx.Add(ctx, []Entry{
		entry("first", "doc1", 0, 1),
		entry("second", "doc1", 0, 1),
		entry("third", "doc2", 0, 1),
	}))

	results, err := idx.Search(ctx, []float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Entry.ChunkID)
	assert.Equal(t, "second", results[1].Entry.ChunkID)
	assert.Equal(t, "third", results[2].Entry.ChunkID)
}

func TestMemoryIndex_RemoveLeavesNoDanglingEntries(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Add(ctx, []Entry{
		entry("a1", "doc-a", 1, 0),
		entry("b1", "doc-b", 0.8, 0.2),
		entry("a2", "doc-a", 0.9, 0.1),
	}))

	require.NoError(t, idx.Remove(ctx, "doc-a"))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	for _, r := range results {
		assert.NotEqual(t, "doc-a", r.Entry.DocumentID)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Add(ctx, []Entry{entry("a", "doc1", 1, 0, 0)}))

	err := idx.Add(ctx, []Entry{entry("b", "doc1", 1, 0)})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	// The failed batch must not be partially visible.
	count, err2 := idx.Count(ctx)
	require.NoError(t, err2)
	assert.Equal(t, 1, count)

	_, err = idx.Search(ctx, []float32{1, 0}, 5)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryIndex_AtomicBatchAdd(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	// Mixed-dimension batch: nothing may be inserted.
	err := idx.Add(ctx, []Entry{
		entry("a", "doc1", 1, 0),
		entry("b", "doc1", 1, 0, 0),
	})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryIndex_SearchEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex()
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	original := []Entry{
		{
			ChunkID:      "c1",
			DocumentID:   "doc-a",
			DocumentName: "statement-march.pdf",
			Page:         3,
			Start:        120,
			End:          480,
			Content:      "Equities 60% Bonds 40%",
			Tokens:       7,
			Vector:       []float32{0.6, 0.8},
		},
		entry("c2", "doc-b", 0, 1),
	}
	require.NoError(t, idx.Add(ctx, original))

	data, err := idx.Snapshot()
	require.NoError(t, err)

	restored, err := RestoreMemoryIndex(data)
	require.NoError(t, err)

	count, err := restored.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Provenance must survive so citations can be reconstructed exactly.
	results, err := restored.Search(ctx, []float32{0.6, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Entry.ChunkID)
	assert.Equal(t, "statement-march.pdf", results[0].Entry.DocumentName)
	assert.Equal(t, 3, results[0].Entry.Page)
	assert.Equal(t, 120, results[0].Entry.Start)
}

func TestRestoreMemoryIndex_RejectsUnknownMetric(t *testing.T) {
	_, err := RestoreMemoryIndex([]byte(`{"dimension":2,"metric":"dot","entries":[]}`))
	require.Error(t, err)
}
