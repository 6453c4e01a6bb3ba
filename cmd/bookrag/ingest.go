package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/ingest"
	"github.com/bull/bookrag/internal/markdown"
	"github.com/bull/bookrag/internal/source"
)

var ingestClear bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the book into the vector index",
	Long: `Reads every markdown chapter from the configured source, chunks it,
generates embeddings and stores the chunks in Qdrant. Each run is recorded
in the log database with its final status and counts.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false,
		"clear the existing collection before ingesting")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	index, err := newIndex(cfg)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if ingestClear {
		fmt.Println("Clearing existing collection...")
		if err := index.ClearCollection(ctx); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	logs, err := openLogStore(cfg)
	if err != nil {
		return fmt.Errorf("open log database: %w", err)
	}
	defer logs.Close()

	src, err := newSource(cfg.SourceDir, cfg.GitHubRepo, cfg.GitHubPath)
	if err != nil {
		return err
	}

	ch, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}

	pipeline := ingest.NewPipeline(src, markdown.NewParser(), ch, embedder, index, logs, slog.Default())

	fmt.Println("Ingesting book...")
	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Files:    %d\n", result.TotalFiles)
	fmt.Printf("  Chunks:   %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))

	return nil
}

// newSource picks the book source: a GitHub repository when configured,
// the local directory otherwise.
func newSource(dir, githubRepo, githubPath string) (source.Source, error) {
	if githubRepo == "" {
		return source.NewFilesystem(dir)
	}

	owner, name, ok := strings.Cut(githubRepo, "/")
	if !ok {
		return nil, fmt.Errorf("BOOK_GITHUB_REPO must be owner/name, got %q", githubRepo)
	}
	return source.NewGitHub(owner, name, githubPath)
}
