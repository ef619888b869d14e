// Package main provides the MCP server entry point for the statement
// chatbot.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bull/portfolio-chat/internal/chat"
	"github.com/bull/portfolio-chat/internal/config"
	"github.com/bull/portfolio-chat/internal/embedding"
	"github.com/bull/portfolio-chat/internal/holdings"
	"github.com/bull/portfolio-chat/internal/indexer"
	"github.com/bull/portfolio-chat/internal/marketdata"
	mcpserver "github.com/bull/portfolio-chat/internal/mcp"
	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	port := getEnv("PORT", "8080")

	embeddingClient, err := embedding.NewClient(cfg.OpenAIKey)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // default batch size

	var index storage.Index
	switch cfg.VectorBackend {
	case "qdrant":
		qdrantIndex, err := storage.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, embedder.Dimension())
		if err != nil {
			log.Fatalf("failed to connect to Qdrant: %v", err)
		}
		index = qdrantIndex
	default:
		index = storage.NewMemoryIndex()
	}
	defer index.Close()

	sess := session.New()
	defer sess.Close()

	chunker := pdfs.NewChunker(cfg.ChunkTokens, cfg.OverlapTokens)
	pipeline := indexer.NewPipeline(embedder, index, chunker, sess, cfg.EmbedParallelism, nil)

	market := marketdata.NewClient(marketdata.WithTimeout(cfg.MarketTimeout))
	generator := chat.NewOpenAIGenerator(embeddingClient.Client(), cfg.ChatModel)
	orchestrator := chat.NewOrchestrator(
		generator,
		embedder,
		index,
		chat.NewAssembler(cfg.ContextBudget, cfg.MinScore),
		chat.NewToolset(market),
		sess,
		nil,
		chat.Options{TopK: cfg.TopK, HistoryBudget: cfg.HistoryBudget},
	)

	server := mcpserver.NewServer(&mcpserver.Config{
		Index:        index,
		Pipeline:     pipeline,
		Orchestrator: orchestrator,
		Embedder:     embedder,
		Market:       market,
		Session:      sess,
		Extractor:    holdings.NewExtractor(),

		EmbedTimeout:    cfg.EmbedTimeout,
		GenerateTimeout: cfg.GenerateTimeout,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(index))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	// Server mode serves MCP over HTTP; otherwise stdio for local clients.
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		go func() {
			addr := "0.0.0.0:" + port
			log.Printf("Starting health server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()

		log.Println("Starting Portfolio Chat MCP Server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
