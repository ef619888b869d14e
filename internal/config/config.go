// Package config centralizes environment-based configuration for the
// statement chat service.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Defaults chosen to match the indexing and retrieval behavior described in
// the user-facing documentation. Chunk sizes are measured in estimated
// model tokens, not characters.
const (
	DefaultChunkTokens      = 500
	DefaultOverlapTokens    = 50
	DefaultTopK             = 8
	DefaultMinScore         = 0.25
	DefaultContextBudget    = 3000
	DefaultHistoryBudget    = 2000
	DefaultEmbedParallelism = 4
)

// Config holds everything the binaries need to wire the components together.
type Config struct {
	// OpenAIKey authenticates both embedding and chat completion calls.
	OpenAIKey string
	ChatModel string

	// Vector index backend: "memory" (default, session-scoped) or "qdrant".
	VectorBackend string
	QdrantHost    string
	QdrantPort    int

	ChunkTokens   int
	OverlapTokens int

	TopK          int
	MinScore      float64
	ContextBudget int
	HistoryBudget int

	EmbedParallelism int

	// External call deadlines. All outbound requests carry one.
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
	MarketTimeout   time.Duration

	// SnapshotPath, when set, is where the session snapshot is saved and
	// restored from.
	SnapshotPath string
}

// Load reads configuration from the environment, honoring a local .env file
// when present. It fails only on settings without a usable default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		ChatModel:        getEnv("CHAT_MODEL", "gpt-4o"),
		VectorBackend:    getEnv("VECTOR_BACKEND", "memory"),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		ChunkTokens:      getEnvInt("CHUNK_TOKENS", DefaultChunkTokens),
		OverlapTokens:    getEnvInt("OVERLAP_TOKENS", DefaultOverlapTokens),
		TopK:             getEnvInt("TOP_K", DefaultTopK),
		MinScore:         getEnvFloat("MIN_SCORE", DefaultMinScore),
		ContextBudget:    getEnvInt("CONTEXT_BUDGET", DefaultContextBudget),
		HistoryBudget:    getEnvInt("HISTORY_BUDGET", DefaultHistoryBudget),
		EmbedParallelism: getEnvInt("EMBED_PARALLELISM", DefaultEmbedParallelism),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", 60*time.Second),
		GenerateTimeout:  getEnvDuration("GENERATE_TIMEOUT", 120*time.Second),
		MarketTimeout:    getEnvDuration("MARKET_TIMEOUT", 15*time.Second),
		SnapshotPath:     os.Getenv("SNAPSHOT_PATH"),
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if cfg.OverlapTokens >= cfg.ChunkTokens {
		return nil, fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)",
			cfg.OverlapTokens, cfg.ChunkTokens)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
