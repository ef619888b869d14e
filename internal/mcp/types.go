// Package mcp exposes the statement chatbot over the Model Context Protocol.
package mcp

import (
	"time"

	"github.com/bull/portfolio-chat/internal/analytics"
)

// IndexStatementInput defines the input parameters for the index_statement tool.
type IndexStatementInput struct {
	// Path is the filesystem path of the PDF statement to index.
	Path string `json:"path" jsonschema:"required,description=Filesystem path of the PDF statement to index"`
}

// IndexStatementOutput reports the indexing outcome.
type IndexStatementOutput struct {
	DocumentID      string `json:"document_id"`
	DocumentName    string `json:"document_name"`
	Pages           int    `json:"pages"`
	UnreadablePages int    `json:"unreadable_pages"`
	Chunks          int    `json:"chunks"`
	// Skipped is true when the same content was already indexed.
	Skipped bool `json:"skipped"`
	// Holdings are candidate positions parsed from the statement text.
	// They become part of the portfolio only after confirm_holdings.
	Holdings []HoldingCandidate `json:"holdings,omitempty"`
	// AmbiguousLines are position-like lines that did not parse cleanly.
	AmbiguousLines []AmbiguousLine `json:"ambiguous_lines,omitempty"`
}

// HoldingCandidate is a parsed position awaiting confirmation.
type HoldingCandidate struct {
	Ticker    string `json:"ticker"`
	Quantity  string `json:"quantity"`
	CostBasis string `json:"cost_basis"`
}

// AmbiguousLine is a statement line that resembled a position but did not
// parse, surfaced for the user to resolve.
type AmbiguousLine struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// RemoveStatementInput defines the input parameters for the remove_statement tool.
type RemoveStatementInput struct {
	// DocumentID identifies the statement to unindex.
	DocumentID string `json:"document_id" jsonschema:"required,description=The document id returned by index_statement"`
}

// RemoveStatementOutput confirms removal.
type RemoveStatementOutput struct {
	Removed bool `json:"removed"`
}

// ListStatementsInput takes no parameters.
type ListStatementsInput struct{}

// ListStatementsOutput lists the indexed statements.
type ListStatementsOutput struct {
	Statements []StatementInfo `json:"statements"`
	Count      int             `json:"count"`
}

// StatementInfo summarizes one indexed statement.
type StatementInfo struct {
	DocumentID      string    `json:"document_id"`
	Name            string    `json:"name"`
	Pages           int       `json:"pages"`
	UnreadablePages int       `json:"unreadable_pages"`
	Chunks          int       `json:"chunks"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// SearchStatementsInput defines the input parameters for the search_statements tool.
type SearchStatementsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant statement passages"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=8,description=Maximum number of passages to return"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.25,description=Minimum relevance score threshold (0-1)"`
}

// SearchStatementsOutput contains the matching passages.
type SearchStatementsOutput struct {
	Results []SearchResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// SearchResult is one matching statement passage.
type SearchResult struct {
	DocumentName string  `json:"document_name"`
	Page         int     `json:"page"`
	Score        float64 `json:"score"`
	Excerpt      string  `json:"excerpt"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	// Question is the user's question about the indexed statements.
	Question string `json:"question" jsonschema:"required,description=The question to answer from the indexed statements"`
}

// AskOutput contains the generated answer.
type AskOutput struct {
	Answer string `json:"answer"`
	// Citations lists the ids of the chunks the answer drew on.
	Citations []string `json:"citations,omitempty"`
	// ContextEmpty signals that no statement passage was relevant.
	ContextEmpty bool `json:"context_empty"`
}

// ConfirmHoldingsInput defines the input parameters for the confirm_holdings tool.
type ConfirmHoldingsInput struct {
	// Holdings are the positions the user confirmed.
	Holdings []HoldingCandidate `json:"holdings" jsonschema:"required,description=Positions confirmed by the user (ticker, quantity, per-share cost basis)"`
}

// ConfirmHoldingsOutput reports the confirmed portfolio size.
type ConfirmHoldingsOutput struct {
	Confirmed int `json:"confirmed"`
	Total     int `json:"total"`
}

// PortfolioSnapshotInput takes no parameters; the snapshot covers the
// confirmed holdings.
type PortfolioSnapshotInput struct{}

// PortfolioSnapshotOutput is the valued portfolio.
type PortfolioSnapshotOutput struct {
	Snapshot *analytics.Snapshot `json:"snapshot"`
	Message  string              `json:"message,omitempty"`
}

// StockQuoteInput defines the input parameters for the stock_quote tool.
type StockQuoteInput struct {
	// Ticker is the equity symbol to quote.
	Ticker string `json:"ticker" jsonschema:"required,description=Ticker symbol e.g. AAPL"`
}

// StockQuoteOutput is the latest quote.
type StockQuoteOutput struct {
	Ticker   string    `json:"ticker"`
	Price    string    `json:"price"`
	Currency string    `json:"currency"`
	AsOf     time.Time `json:"as_of"`
}
