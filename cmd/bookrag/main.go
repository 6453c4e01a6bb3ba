// Package main provides the bookrag CLI for ingesting a book into Qdrant
// and asking grounded questions against it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/bookrag/internal/config"
	"github.com/bull/bookrag/internal/embedding"
	"github.com/bull/bookrag/internal/logstore"
	"github.com/bull/bookrag/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "bookrag",
	Short: "Book question-answering over a vector index",
	Long: `bookrag ingests a book's markdown chapters into Qdrant and answers
questions grounded strictly in the book's content.

Environment variables:
  OPENAI_API_KEY        OpenAI API key (required)
  OPENAI_BASE_URL       OpenAI-compatible endpoint (optional)
  QDRANT_HOST           Qdrant hostname (default: localhost)
  QDRANT_PORT           Qdrant gRPC port (default: 6334)
  BOOK_SOURCE_DIR       Local markdown directory (default: docs)
  BOOK_GITHUB_REPO      owner/name to ingest from GitHub instead
  LOG_DB_PATH           SQLite log database (default: bookrag.db)`,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates environment configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newEmbedder builds the embedding backend from configuration.
func newEmbedder(cfg *config.Config) (*embedding.OpenAIEmbedder, error) {
	return embedding.NewOpenAIEmbedder(embedding.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDim,
	}, slog.Default())
}

// newIndex connects to Qdrant.
func newIndex(cfg *config.Config) (*storage.QdrantIndex, error) {
	return storage.NewQdrantIndex(storage.Config{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		APIKey:     cfg.QdrantAPIKey,
		UseTLS:     cfg.QdrantUseTLS,
		Collection: cfg.QdrantCollection,
		Dimension:  cfg.EmbeddingDim,
	}, slog.Default())
}

// openLogStore opens the SQLite log database.
func openLogStore(cfg *config.Config) (*logstore.Store, error) {
	return logstore.Open(cfg.LogDBPath, slog.Default())
}
