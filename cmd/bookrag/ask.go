package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bull/bookrag/internal/answer"
	"github.com/bull/bookrag/internal/query"
)

var (
	askSession  string
	askSelected string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the book",
	Long: `Answers a question using only the book's content. With --selected-text
the answer is grounded in the given passage instead of vector search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "session ID for the query log (default: random)")
	askCmd.Flags().StringVar(&askSelected, "selected-text", "", "answer from this passage instead of searching the book")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	index, err := newIndex(cfg)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer index.Close()

	logs, err := openLogStore(cfg)
	if err != nil {
		return fmt.Errorf("open log database: %w", err)
	}
	defer logs.Close()

	generator, err := answer.NewOpenAIGenerator(answer.GeneratorConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ChatModel,
	})
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	answerer := answer.NewAnswerer(generator, slog.Default())
	pipeline := query.NewPipeline(embedder, index, answerer, logs, slog.Default())

	session := askSession
	if session == "" {
		session = uuid.New().String()
	}

	resp, err := pipeline.Ask(ctx, query.Request{
		SessionID:           session,
		Query:               strings.Join(args, " "),
		SelectedText:        askSelected,
		TopK:                cfg.TopK,
		SimilarityThreshold: float32(cfg.SimilarityThreshold),
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Println(resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range resp.Sources {
			label := src.Chapter
			if src.Section != "" {
				label += ", " + src.Section
			}
			fmt.Printf("  - %s (%s, score %.2f)\n", label, src.URL, src.SimilarityScore)
		}
	}

	fmt.Println()
	fmt.Printf("(%dms, session %s)\n", resp.ResponseTimeMS, resp.SessionID)
	return nil
}
