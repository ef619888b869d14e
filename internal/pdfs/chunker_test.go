package pdfs

import (
	"strings"
	"testing"
)

// pageOfWords builds a page whose text is n short words, each estimated at
// exactly one token.
func pageOfWords(number, n int) Page {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return Page{Number: number, Text: strings.Join(words, " ")}
}

// TestChunkPages_TwoPageStatement covers the canonical sizing scenario:
// a 1200-token page and a 300-token page at size 500 / overlap 50 produce
// three overlapping chunks and one standalone chunk, none spanning pages.
func TestChunkPages_TwoPageStatement(t *testing.T) {
	pages := []Page{pageOfWords(1, 1200), pageOfWords(2, 300)}

	chunker := NewChunker(500, 50)
	chunks := chunker.ChunkPages("doc-1", pages)

	if len(chunks) != 4 {
		t.Fatalf("Expected 4 chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.Tokens > 500 {
			t.Errorf("Chunk %d exceeds target: %d tokens", i, chunk.Tokens)
		}
		if chunk.Index != i {
			t.Errorf("Chunk %d has index %d", i, chunk.Index)
		}
	}

	pageCounts := map[int]int{}
	for _, chunk := range chunks {
		pageCounts[chunk.Page]++
	}
	if pageCounts[1] != 3 {
		t.Errorf("Expected 3 chunks on page 1, got %d", pageCounts[1])
	}
	if pageCounts[2] != 1 {
		t.Errorf("Expected 1 chunk on page 2, got %d", pageCounts[2])
	}
}

// TestChunkPages_OverlapRegion verifies that consecutive chunks on the same
// page share the configured amount of trailing context.
func TestChunkPages_OverlapRegion(t *testing.T) {
	page := pageOfWords(1, 1200)

	chunker := NewChunker(500, 50)
	chunks := chunker.ChunkPages("doc-1", []Page{page})
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	first, second := chunks[0], chunks[1]
	if second.Start >= first.End {
		t.Fatalf("Chunks do not overlap: first ends at %d, second starts at %d",
			first.End, second.Start)
	}

	shared := page.Text[second.Start:first.End]
	if got := EstimateTokens(shared); got != 50 {
		t.Errorf("Expected 50 overlap tokens, got %d", got)
	}
}

// TestChunkPages_Deterministic re-chunks identical input and requires
// byte-identical output, which idempotent re-indexing depends on.
func TestChunkPages_Deterministic(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "Account summary.  Total value $1,234.56 as of 2024-03-31.\nHoldings follow."},
		pageOfWords(2, 777),
	}

	chunker := NewChunker(120, 20)
	first := chunker.ChunkPages("doc-1", pages)
	second := chunker.ChunkPages("doc-1", pages)

	if len(first) != len(second) {
		t.Fatalf("Chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Chunk %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// TestChunkPages_OversizedWord checks that a single indivisible word larger
// than the whole budget is emitted oversized instead of being truncated.
func TestChunkPages_OversizedWord(t *testing.T) {
	long := strings.Repeat("x", 200) // ~50 tokens
	page := Page{Number: 1, Text: "short " + long + " tail"}

	chunker := NewChunker(10, 2)
	chunks := chunker.ChunkPages("doc-1", []Page{page})

	found := false
	for _, chunk := range chunks {
		if chunk.Text == long {
			found = true
			if chunk.Tokens <= 10 {
				t.Errorf("Oversized chunk reports %d tokens", chunk.Tokens)
			}
		} else if chunk.Tokens > 10 {
			t.Errorf("Regular chunk exceeds target: %d tokens (%q)", chunk.Tokens, chunk.Text)
		}
	}
	if !found {
		t.Error("Oversized word was not emitted as its own chunk")
	}
}

// TestChunkPages_TinyTargetClampsOverlap guards against an overlap fallback
// at or above the target size, which would stall forward progress.
func TestChunkPages_TinyTargetClampsOverlap(t *testing.T) {
	page := pageOfWords(1, 35)

	chunker := NewChunker(10, 50)
	chunks := chunker.ChunkPages("doc-1", []Page{page})

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Tokens > 10 {
			t.Errorf("Chunk %d exceeds target: %d tokens", i, chunk.Tokens)
		}
		if i > 0 && chunk.Start <= chunks[i-1].Start {
			t.Errorf("Chunk %d does not advance: start %d after %d",
				i, chunk.Start, chunks[i-1].Start)
		}
	}
	if last := chunks[len(chunks)-1]; last.End != len(page.Text) {
		t.Errorf("Last chunk ends at %d, want %d", last.End, len(page.Text))
	}
}

// TestChunkPages_SkipsUnreadablePages ensures flagged pages produce no
// chunks but do not fail the document.
func TestChunkPages_SkipsUnreadablePages(t *testing.T) {
	pages := []Page{
		{Number: 1, Unreadable: true, Reason: "no extractable text"},
		pageOfWords(2, 10),
	}

	chunks := NewChunker(500, 50).ChunkPages("doc-1", pages)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Page != 2 {
		t.Errorf("Expected chunk from page 2, got page %d", chunks[0].Page)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"word", 1},
		{"word word", 2},
		{"abcdefgh", 2},
		{"a b c", 3},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
