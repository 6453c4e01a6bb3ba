package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and log store health",
	Long: `Reports the Qdrant collection statistics, embedding backend
reachability and the most recent ingestion run.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := newIndex(cfg)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer index.Close()

	info, err := index.Info(ctx)
	if err != nil {
		return fmt.Errorf("get collection info: %w", err)
	}

	fmt.Printf("Collection %q\n", cfg.QdrantCollection)
	fmt.Printf("  Points:    %d\n", info.PointCount)
	fmt.Printf("  Dimension: %d\n", info.VectorDimension)
	fmt.Printf("  Distance:  %s\n", info.DistanceMetric)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	fmt.Println()
	if embedder.TestConnection(ctx) {
		fmt.Printf("Embedding backend OK (%s, %d dims)\n", cfg.EmbeddingModel, cfg.EmbeddingDim)
	} else {
		fmt.Println("Embedding backend UNREACHABLE")
	}

	logs, err := openLogStore(cfg)
	if err != nil {
		return fmt.Errorf("open log database: %w", err)
	}
	defer logs.Close()

	last, err := logs.LastIngestion(ctx)
	if err != nil {
		return fmt.Errorf("read ingestion log: %w", err)
	}

	fmt.Println()
	if last == nil {
		fmt.Println("No ingestion has run yet")
		return nil
	}

	fmt.Printf("Last ingestion: %s\n", last.Status)
	fmt.Printf("  Started: %s\n", last.StartedAt.Format(time.RFC3339))
	if last.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", last.CompletedAt.Format(time.RFC3339))
	}
	fmt.Printf("  Files:  %d\n", last.TotalFiles)
	fmt.Printf("  Chunks: %d\n", last.TotalChunks)
	if last.ErrorMessage != "" {
		fmt.Printf("  Error:  %s\n", last.ErrorMessage)
	}
	return nil
}
