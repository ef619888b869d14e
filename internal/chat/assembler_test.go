package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/portfolio-chat/internal/storage"
)

func scored(chunkID string, page, start, end int, score float64, words int) storage.Scored {
	return storage.Scored{
		Entry: storage.Entry{
			ChunkID:      chunkID,
			DocumentID:   "doc-1",
			DocumentName: "stmt.pdf",
			Page:         page,
			Start:        start,
			End:          end,
			Content:      strings.TrimSpace(strings.Repeat("word ", words)),
		},
		Score: score,
	}
}

func TestAssemble_CitationFormat(t *testing.T) {
	a := NewAssembler(1000, 0.25)
	ctx := a.Assemble([]storage.Scored{scored("c1", 2, 0, 100, 0.9, 10)})

	require.False(t, ctx.Empty)
	assert.True(t, strings.HasPrefix(ctx.Text, "[stmt.pdf p.2]\n"))
	assert.Equal(t, []string{"c1"}, ctx.Citations)
	assert.Greater(t, ctx.Tokens, 0)
}

func TestAssemble_StopsAtBudget(t *testing.T) {
	// Each block costs roughly 43 tokens (40 content words plus header).
	results := []storage.Scored{
		scored("c1", 1, 0, 100, 0.9, 40),
		scored("c2", 2, 0, 100, 0.8, 40),
		scored("c3", 3, 0, 100, 0.7, 40),
	}

	a := NewAssembler(90, 0.25)
	ctx := a.Assemble(results)

	assert.Equal(t, []string{"c1", "c2"}, ctx.Citations)
	assert.LessOrEqual(t, ctx.Tokens, 90)
}

func TestAssemble_SkipsBelowMinScore(t *testing.T) {
	results := []storage.Scored{
		scored("c1", 1, 0, 100, 0.9, 5),
		scored("c2", 2, 0, 100, 0.1, 5),
		scored("c3", 3, 0, 100, 0.5, 5),
	}

	a := NewAssembler(1000, 0.25)
	ctx := a.Assemble(results)

	// Budget was plentiful; the low scorer is still excluded.
	assert.Equal(t, []string{"c1", "c3"}, ctx.Citations)
}

func TestAssemble_SkipsOverlappingDuplicates(t *testing.T) {
	results := []storage.Scored{
		scored("c1", 1, 0, 500, 0.9, 5),
		scored("c2", 1, 450, 950, 0.8, 5),  // overlaps c1 on the same page
		scored("c3", 1, 950, 1200, 0.7, 5), // adjacent, no overlap
		scored("c4", 2, 0, 500, 0.6, 5),    // same offsets, different page
	}

	a := NewAssembler(1000, 0.25)
	ctx := a.Assemble(results)

	assert.Equal(t, []string{"c1", "c3", "c4"}, ctx.Citations)
}

func TestAssemble_EmptyIsExplicit(t *testing.T) {
	a := NewAssembler(1000, 0.25)

	ctx := a.Assemble(nil)
	assert.True(t, ctx.Empty)

	ctx = a.Assemble([]storage.Scored{scored("c1", 1, 0, 100, 0.05, 5)})
	assert.True(t, ctx.Empty, "sub-threshold results assemble to nothing")
	assert.Empty(t, ctx.Citations)
}
