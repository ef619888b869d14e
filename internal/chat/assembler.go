package chat

import (
	"fmt"
	"strings"

	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/storage"
)

const (
	// DefaultContextBudget caps the tokens of retrieved statement text
	// injected into the system prompt.
	DefaultContextBudget = 3000

	// DefaultMinScore drops weakly-related chunks even when budget remains.
	DefaultMinScore = 0.25
)

// Context is the assembled statement context for one query. Empty is an
// explicit signal that retrieval found nothing relevant; callers must not
// treat a blank Text as equivalent.
type Context struct {
	Empty     bool
	Text      string
	Citations []string
	Tokens    int
}

// Assembler builds prompt context from search results: greedy in rank
// order, bounded by a token budget, with a relevance floor and duplicate
// suppression.
type Assembler struct {
	TokenBudget int
	MinScore    float64
}

func NewAssembler(tokenBudget int, minScore float64) *Assembler {
	if tokenBudget <= 0 {
		tokenBudget = DefaultContextBudget
	}
	return &Assembler{TokenBudget: tokenBudget, MinScore: minScore}
}

// Assemble walks results in rank order and emits [filename p.N] source
// blocks until the next block would exceed the budget. Chunks scoring below
// MinScore are skipped even with budget to spare. A chunk duplicating an
// already-chosen one (same document and page, overlapping offsets) is
// skipped; overlap regions would otherwise inject the same sentences twice.
func (a *Assembler) Assemble(results []storage.Scored) *Context {
	var blocks []string
	var citations []string
	var chosen []storage.Entry
	used := 0

	for _, r := range results {
		if r.Score < a.MinScore {
			continue
		}
		if overlapsAny(r.Entry, chosen) {
			continue
		}

		block := fmt.Sprintf("[%s p.%d]\n%s", r.Entry.DocumentName, r.Entry.Page, r.Entry.Content)
		cost := pdfs.EstimateTokens(block)
		if used+cost > a.TokenBudget {
			break
		}

		blocks = append(blocks, block)
		citations = append(citations, r.Entry.ChunkID)
		chosen = append(chosen, r.Entry)
		used += cost
	}

	if len(blocks) == 0 {
		return &Context{Empty: true}
	}
	return &Context{
		Text:      strings.Join(blocks, "\n\n"),
		Citations: citations,
		Tokens:    used,
	}
}

func overlapsAny(e storage.Entry, chosen []storage.Entry) bool {
	for _, c := range chosen {
		if c.DocumentID == e.DocumentID && c.Page == e.Page &&
			e.Start < c.End && c.Start < e.End {
			return true
		}
	}
	return false
}
