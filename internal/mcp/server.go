package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/portfolio-chat/internal/chat"
	"github.com/bull/portfolio-chat/internal/embedding"
	"github.com/bull/portfolio-chat/internal/holdings"
	"github.com/bull/portfolio-chat/internal/indexer"
	"github.com/bull/portfolio-chat/internal/marketdata"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server       *mcp.Server
	index        storage.Index
	pipeline     *indexer.Pipeline
	orchestrator *chat.Orchestrator
	session      *session.Session
}

// Config holds server dependencies.
type Config struct {
	Index        storage.Index
	Pipeline     *indexer.Pipeline
	Orchestrator *chat.Orchestrator
	Embedder     embedding.Service
	Market       *marketdata.Client
	Session      *session.Session
	Extractor    *holdings.Extractor

	// Deadlines applied per tool invocation on top of the SDK's request
	// context. Zero leaves the call unbounded.
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "portfolio-chat-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_statement",
		Description: "Index a PDF financial statement for question answering. Returns indexing stats plus candidate holdings parsed from the statement; confirm them with confirm_holdings.",
	}, makeIndexHandler(cfg.Pipeline, cfg.Extractor, cfg.EmbedTimeout))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_statement",
		Description: "Remove an indexed statement and all of its chunks. The same file can be re-indexed afterwards.",
	}, makeRemoveHandler(cfg.Pipeline))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_statements",
		Description: "List the statements indexed in this session.",
	}, makeListHandler(cfg.Session))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_statements",
		Description: "Search indexed statements semantically. Returns matching passages with document, page and score.",
	}, makeSearchHandler(cfg.Index, cfg.Embedder, cfg.EmbedTimeout))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask a question about the indexed statements. The answer is grounded in retrieved statement passages and cites its sources.",
	}, makeAskHandler(cfg.Orchestrator, cfg.GenerateTimeout))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "confirm_holdings",
		Description: "Confirm parsed holdings into the session portfolio. A confirmed holding replaces an earlier one for the same ticker.",
	}, makeConfirmHandler(cfg.Session))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "portfolio_snapshot",
		Description: "Value the confirmed holdings at live prices: total, per-position allocation and unrealized gain/loss. Unpriceable tickers are listed separately.",
	}, makeSnapshotHandler(cfg.Session, cfg.Market))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stock_quote",
		Description: "Return the latest price for a single equity ticker.",
	}, makeQuoteHandler(cfg.Market))

	return &Server{
		server:       server,
		index:        cfg.Index,
		pipeline:     cfg.Pipeline,
		orchestrator: cfg.Orchestrator,
		session:      cfg.Session,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
