package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"github.com/bull/portfolio-chat/internal/analytics"
	"github.com/bull/portfolio-chat/internal/chat"
	"github.com/bull/portfolio-chat/internal/embedding"
	"github.com/bull/portfolio-chat/internal/holdings"
	"github.com/bull/portfolio-chat/internal/indexer"
	"github.com/bull/portfolio-chat/internal/marketdata"
	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

// withDeadline bounds a tool call's outbound work. A zero timeout leaves
// the SDK's request context as-is.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// makeIndexHandler creates the index_statement tool handler. After
// indexing, the statement text is scanned for candidate holdings which are
// returned for confirmation, not committed.
func makeIndexHandler(pipeline *indexer.Pipeline, extractor *holdings.Extractor, timeout time.Duration) func(
	context.Context, *mcp.CallToolRequest, IndexStatementInput,
) (*mcp.CallToolResult, IndexStatementOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatementInput) (
		*mcp.CallToolResult, IndexStatementOutput, error,
	) {
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, IndexStatementOutput{}, fmt.Errorf("failed to read %s: %w", input.Path, err)
		}

		ctx, cancel := withDeadline(ctx, timeout)
		defer cancel()

		filename := filepath.Base(input.Path)
		result, err := pipeline.IndexDocument(ctx, filename, data)
		if err != nil {
			return nil, IndexStatementOutput{}, err
		}

		out := IndexStatementOutput{
			DocumentID:      result.DocumentID,
			DocumentName:    result.DocumentName,
			Pages:           result.Pages,
			UnreadablePages: result.UnreadablePages,
			Chunks:          result.Chunks,
			Skipped:         result.Skipped,
		}
		if result.Skipped {
			return nil, out, nil
		}

		candidates, ambiguous := extractHoldings(extractor, data, result.DocumentID)
		out.Holdings = candidates
		out.AmbiguousLines = ambiguous
		return nil, out, nil
	}
}

// extractHoldings re-extracts page text and parses position lines. Failures
// here never fail the indexing that already committed.
func extractHoldings(extractor *holdings.Extractor, data []byte, documentID string) ([]HoldingCandidate, []AmbiguousLine) {
	extracted, err := pdfs.ExtractPages(data)
	if err != nil {
		return nil, nil
	}

	var texts []string
	for _, page := range extracted.Pages {
		if !page.Unreadable {
			texts = append(texts, page.Text)
		}
	}

	parsed, ambiguous := extractor.Extract(strings.Join(texts, "\n"), documentID)

	candidates := make([]HoldingCandidate, 0, len(parsed))
	for _, h := range parsed {
		candidates = append(candidates, HoldingCandidate{
			Ticker:    h.Ticker,
			Quantity:  h.Quantity.String(),
			CostBasis: h.CostBasis.String(),
		})
	}
	lines := make([]AmbiguousLine, 0, len(ambiguous))
	for _, a := range ambiguous {
		lines = append(lines, AmbiguousLine{Line: a.Line, Reason: a.Reason})
	}
	return candidates, lines
}

// makeRemoveHandler creates the remove_statement tool handler.
func makeRemoveHandler(pipeline *indexer.Pipeline) func(
	context.Context, *mcp.CallToolRequest, RemoveStatementInput,
) (*mcp.CallToolResult, RemoveStatementOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RemoveStatementInput) (
		*mcp.CallToolResult, RemoveStatementOutput, error,
	) {
		if err := pipeline.RemoveDocument(ctx, input.DocumentID); err != nil {
			return nil, RemoveStatementOutput{}, err
		}
		return nil, RemoveStatementOutput{Removed: true}, nil
	}
}

// makeListHandler creates the list_statements tool handler.
func makeListHandler(sess *session.Session) func(
	context.Context, *mcp.CallToolRequest, ListStatementsInput,
) (*mcp.CallToolResult, ListStatementsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListStatementsInput) (
		*mcp.CallToolResult, ListStatementsOutput, error,
	) {
		docs := sess.Documents()
		statements := make([]StatementInfo, 0, len(docs))
		for _, d := range docs {
			statements = append(statements, StatementInfo{
				DocumentID:      d.ID,
				Name:            d.Name,
				Pages:           d.Pages,
				UnreadablePages: d.UnreadablePages,
				Chunks:          d.Chunks,
				IndexedAt:       d.IndexedAt,
			})
		}
		return nil, ListStatementsOutput{Statements: statements, Count: len(statements)}, nil
	}
}

// makeSearchHandler creates the search_statements tool handler.
// Search flow: embed the query, vector search, drop sub-threshold scores.
func makeSearchHandler(index storage.Index, embedder embedding.Service, timeout time.Duration) func(
	context.Context, *mcp.CallToolRequest, SearchStatementsInput,
) (*mcp.CallToolResult, SearchStatementsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchStatementsInput) (
		*mcp.CallToolResult, SearchStatementsOutput, error,
	) {
		ctx, cancel := withDeadline(ctx, timeout)
		defer cancel()

		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = chat.DefaultTopK
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = chat.DefaultMinScore
		}

		vectors, err := embedder.Embed(ctx, []string{input.Query})
		if err != nil {
			return nil, SearchStatementsOutput{}, fmt.Errorf("failed to embed query: %w", err)
		}

		scored, err := index.Search(ctx, vectors[0], maxResults)
		if err != nil {
			return nil, SearchStatementsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(scored))
		for _, s := range scored {
			if s.Score < minScore {
				continue
			}
			results = append(results, SearchResult{
				DocumentName: s.Entry.DocumentName,
				Page:         s.Entry.Page,
				Score:        s.Score,
				Excerpt:      s.Entry.Content,
			})
		}

		if len(results) == 0 {
			return nil, SearchStatementsOutput{
				Results: []SearchResult{},
				Message: "No matching passages found. Try broader search terms.",
			}, nil
		}
		return nil, SearchStatementsOutput{Results: results}, nil
	}
}

// makeAskHandler creates the ask tool handler.
func makeAskHandler(orchestrator *chat.Orchestrator, timeout time.Duration) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		ctx, cancel := withDeadline(ctx, timeout)
		defer cancel()

		answer, err := orchestrator.Ask(ctx, input.Question)
		if err != nil {
			return nil, AskOutput{}, err
		}
		return nil, AskOutput{
			Answer:       answer.Text,
			Citations:    answer.Citations,
			ContextEmpty: answer.ContextEmpty,
		}, nil
	}
}

// makeConfirmHandler creates the confirm_holdings tool handler.
func makeConfirmHandler(sess *session.Session) func(
	context.Context, *mcp.CallToolRequest, ConfirmHoldingsInput,
) (*mcp.CallToolResult, ConfirmHoldingsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ConfirmHoldingsInput) (
		*mcp.CallToolResult, ConfirmHoldingsOutput, error,
	) {
		confirmed := make([]holdings.Holding, 0, len(input.Holdings))
		for _, c := range input.Holdings {
			quantity, err := decimal.NewFromString(c.Quantity)
			if err != nil {
				return nil, ConfirmHoldingsOutput{}, fmt.Errorf("%s: bad quantity %q", c.Ticker, c.Quantity)
			}
			costBasis, err := decimal.NewFromString(c.CostBasis)
			if err != nil {
				return nil, ConfirmHoldingsOutput{}, fmt.Errorf("%s: bad cost basis %q", c.Ticker, c.CostBasis)
			}
			confirmed = append(confirmed, holdings.Holding{
				Ticker:    strings.ToUpper(c.Ticker),
				Quantity:  quantity,
				CostBasis: costBasis,
			})
		}

		sess.ConfirmHoldings(confirmed)
		return nil, ConfirmHoldingsOutput{
			Confirmed: len(confirmed),
			Total:     len(sess.Holdings()),
		}, nil
	}
}

// makeSnapshotHandler creates the portfolio_snapshot tool handler.
func makeSnapshotHandler(sess *session.Session, market *marketdata.Client) func(
	context.Context, *mcp.CallToolRequest, PortfolioSnapshotInput,
) (*mcp.CallToolResult, PortfolioSnapshotOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PortfolioSnapshotInput) (
		*mcp.CallToolResult, PortfolioSnapshotOutput, error,
	) {
		positions := sess.Holdings()
		if len(positions) == 0 {
			return nil, PortfolioSnapshotOutput{
				Message: "No confirmed holdings. Index a statement and confirm its holdings first.",
			}, nil
		}

		tickers := make([]string, 0, len(positions))
		for _, h := range positions {
			tickers = append(tickers, h.Ticker)
		}

		quotes := market.Quotes(ctx, tickers)
		return nil, PortfolioSnapshotOutput{
			Snapshot: analytics.ComputeSnapshot(positions, quotes),
		}, nil
	}
}

// makeQuoteHandler creates the stock_quote tool handler.
func makeQuoteHandler(market *marketdata.Client) func(
	context.Context, *mcp.CallToolRequest, StockQuoteInput,
) (*mcp.CallToolResult, StockQuoteOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StockQuoteInput) (
		*mcp.CallToolResult, StockQuoteOutput, error,
	) {
		q, err := market.Quote(ctx, input.Ticker)
		if err != nil {
			return nil, StockQuoteOutput{}, err
		}
		return nil, StockQuoteOutput{
			Ticker:   q.Ticker,
			Price:    q.Price.String(),
			Currency: q.Currency,
			AsOf:     q.AsOf,
		}, nil
	}
}
