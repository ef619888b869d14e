// Package main provides the interactive CLI for the statement chatbot.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/bull/portfolio-chat/internal/analytics"
	"github.com/bull/portfolio-chat/internal/chat"
	"github.com/bull/portfolio-chat/internal/config"
	"github.com/bull/portfolio-chat/internal/embedding"
	"github.com/bull/portfolio-chat/internal/holdings"
	"github.com/bull/portfolio-chat/internal/indexer"
	"github.com/bull/portfolio-chat/internal/marketdata"
	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

var snapshotPath string

var rootCmd = &cobra.Command{
	Use:   "portfolio-chat",
	Short: "Chat with your PDF financial statements",
	Long: `Index PDF financial statements and ask questions about them.

Answers are grounded in the statement text and cite their sources.
Use --snapshot to persist the index between invocations.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings and chat (required)
  CHAT_MODEL     Chat model name (default: gpt-4o)
  SNAPSHOT_PATH  Default snapshot file for --snapshot`,
}

var indexCmd = &cobra.Command{
	Use:   "index <pdf...>",
	Short: "Index one or more PDF statements",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the indexed statements",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat over the indexed statements",
	RunE:  runChat,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <ticker>",
	Short: "Performance metrics for a ticker from its price history",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetrics,
}

var quoteCmd = &cobra.Command{
	Use:   "quote <ticker...>",
	Short: "Latest prices for one or more tickers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuote,
}

var metricsPeriod string

func init() {
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "",
		"index snapshot file to load and save (default: $SNAPSHOT_PATH)")
	metricsCmd.Flags().StringVar(&metricsPeriod, "period", "1y",
		"history range: 1mo, 3mo, 6mo, 1y, 2y, 5y, max")

	rootCmd.AddCommand(indexCmd, askCmd, chatCmd, metricsCmd, quoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components for one CLI invocation.
type app struct {
	cfg          *config.Config
	index        *storage.MemoryIndex
	session      *session.Session
	pipeline     *indexer.Pipeline
	orchestrator *chat.Orchestrator
	market       *marketdata.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if snapshotPath == "" {
		snapshotPath = cfg.SnapshotPath
	}

	index, err := loadIndex()
	if err != nil {
		return nil, err
	}

	embeddingClient, err := embedding.NewClient(cfg.OpenAIKey)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0)

	sess := session.New()
	market := marketdata.NewClient(marketdata.WithTimeout(cfg.MarketTimeout))

	pipeline := indexer.NewPipeline(embedder, index,
		pdfs.NewChunker(cfg.ChunkTokens, cfg.OverlapTokens), sess, cfg.EmbedParallelism, nil)

	orchestrator := chat.NewOrchestrator(
		chat.NewOpenAIGenerator(embeddingClient.Client(), cfg.ChatModel),
		embedder,
		index,
		chat.NewAssembler(cfg.ContextBudget, cfg.MinScore),
		chat.NewToolset(market),
		sess,
		nil,
		chat.Options{TopK: cfg.TopK, HistoryBudget: cfg.HistoryBudget},
	)

	return &app{
		cfg:          cfg,
		index:        index,
		session:      sess,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		market:       market,
	}, nil
}

func loadIndex() (*storage.MemoryIndex, error) {
	if snapshotPath == "" {
		return storage.NewMemoryIndex(), nil
	}
	data, err := os.ReadFile(snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return storage.NewMemoryIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	index, err := storage.RestoreMemoryIndex(data)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %s: %w", snapshotPath, err)
	}
	return index, nil
}

func (a *app) saveIndex() error {
	if snapshotPath == "" {
		return nil
	}
	data, err := a.index.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot index: %w", err)
	}
	if err := os.WriteFile(snapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	extractor := holdings.NewExtractor()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		indexCtx, cancel := context.WithTimeout(ctx, a.cfg.EmbedTimeout)
		result, err := a.pipeline.IndexDocument(indexCtx, filepath.Base(path), data)
		cancel()
		if err != nil {
			return err
		}

		if result.Skipped {
			fmt.Printf("%s: already indexed, skipped\n", result.DocumentName)
			continue
		}
		fmt.Printf("%s: %d pages (%d unreadable), %d chunks\n",
			result.DocumentName, result.Pages, result.UnreadablePages, result.Chunks)

		candidates, ambiguous := extractor.Extract(pagesText(data), result.DocumentID)
		for _, h := range candidates {
			fmt.Printf("  holding: %s %s @ %s\n", h.Ticker, h.Quantity, h.CostBasis)
		}
		for _, line := range ambiguous {
			fmt.Printf("  could not parse (%s): %s\n", line.Reason, line.Line)
		}
	}

	return a.saveIndex()
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.GenerateTimeout)
	defer cancel()

	answer, err := a.orchestrator.Ask(ctx, args[0])
	if err != nil {
		return err
	}

	if answer.ContextEmpty {
		fmt.Println("(no relevant statement passages found)")
	}
	return printMarkdown(answer.Text)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.session.Close()

	fmt.Println("Chat over your indexed statements. Empty line or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.GenerateTimeout)
		stream, err := a.orchestrator.AskStream(ctx, question)
		if err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		for token := range stream.Tokens() {
			fmt.Print(token)
		}
		fmt.Println()
		if err := stream.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else if cited := stream.Citations(); len(cited) > 0 {
			fmt.Printf("(grounded in %d statement passages)\n", len(cited))
		}
		cancel()
	}

	return a.saveIndex()
}

func runMetrics(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.MarketTimeout)
	defer cancel()

	ticker := strings.ToUpper(args[0])
	points, err := a.market.History(ctx, ticker, metricsPeriod)
	if err != nil {
		return err
	}

	prices := make([]float64, len(points))
	dates := make([]time.Time, len(points))
	for i, p := range points {
		prices[i] = p.Close
		dates[i] = p.Date
	}

	m := analytics.Compute(prices, dates, true, 0)

	fmt.Printf("%s over %s (%d observations)\n\n", ticker, metricsPeriod, len(points))
	fmt.Printf("  cumulative return      %8.2f%%\n", m.CumulativeReturn*100)
	fmt.Printf("  annualized return      %8.2f%%\n", m.AnnualizedReturn*100)
	fmt.Printf("  annualized volatility  %8.2f%%\n", m.AnnualizedVolatility*100)
	fmt.Printf("  max drawdown           %8.2f%%\n", m.MaxDrawdown*100)
	return nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.MarketTimeout)
	defer cancel()

	results := a.market.Quotes(ctx, args)
	for _, t := range args {
		r := results[strings.ToUpper(t)]
		if r.Err != nil {
			fmt.Printf("%-8s unavailable: %v\n", strings.ToUpper(t), r.Err)
			continue
		}
		fmt.Printf("%-8s %s %s (as of %s)\n",
			r.Quote.Ticker, r.Quote.Price, r.Quote.Currency,
			r.Quote.AsOf.Format("2006-01-02 15:04 MST"))
	}
	return nil
}

// pagesText joins the readable page texts for holdings extraction.
func pagesText(data []byte) string {
	extracted, err := pdfs.ExtractPages(data)
	if err != nil {
		return ""
	}
	var texts []string
	for _, page := range extracted.Pages {
		if !page.Unreadable {
			texts = append(texts, page.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func printMarkdown(text string) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		fmt.Println(text)
		return nil
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		fmt.Println(text)
		return nil
	}
	fmt.Print(rendered)
	return nil
}
