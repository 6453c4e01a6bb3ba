// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bull/bookrag/internal/answer"
	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/embedding"
	"github.com/bull/bookrag/internal/query"
	"github.com/bull/bookrag/internal/storage"
)

// Config holds every tunable of the system. All fields come from
// environment variables with sensible defaults; only OPENAI_API_KEY is
// required.
type Config struct {
	// OpenAI (or OpenAI-compatible) API access.
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string
	EmbeddingDim   int
	ChatModel      string

	// Qdrant connection.
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantUseTLS     bool
	QdrantCollection string

	// Chunking.
	ChunkSize    int
	ChunkOverlap int

	// Retrieval.
	TopK                int
	SimilarityThreshold float64

	// Book source. GitHubRepo as "owner/name" switches ingestion from the
	// local SourceDir to a repository.
	SourceDir  string
	GitHubRepo string
	GitHubPath string

	// Query and ingestion log database.
	LogDBPath string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", embedding.DefaultModel),
		EmbeddingDim:   envInt("EMBEDDING_DIMENSION", embedding.DefaultDimension),
		ChatModel:      envOr("OPENAI_CHAT_MODEL", answer.DefaultChatModel),

		QdrantHost:       envOr("QDRANT_HOST", "localhost"),
		QdrantPort:       envInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantUseTLS:     envBool("QDRANT_USE_TLS", false),
		QdrantCollection: envOr("QDRANT_COLLECTION", storage.DefaultCollection),

		ChunkSize:    envInt("CHUNK_SIZE", chunker.DefaultChunkSize),
		ChunkOverlap: envInt("CHUNK_OVERLAP", chunker.DefaultChunkOverlap),

		TopK:                envInt("TOP_K", query.DefaultTopK),
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", query.DefaultSimilarityThreshold),

		SourceDir:  envOr("BOOK_SOURCE_DIR", "docs"),
		GitHubRepo: os.Getenv("BOOK_GITHUB_REPO"),
		GitHubPath: envOr("BOOK_GITHUB_PATH", "docs"),

		LogDBPath: envOr("LOG_DB_PATH", "bookrag.db"),
	}
}

// Validate checks for required and internally consistent settings.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0, 1], got %g", c.SimilarityThreshold)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	return nil
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func envBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
