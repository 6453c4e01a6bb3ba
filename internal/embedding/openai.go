package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/bookrag/internal/retry"
)

const (
	// DefaultModel is the OpenAI embedding model.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector size of text-embedding-3-small.
	DefaultDimension = 1536
)

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API or
// any OpenAI-compatible endpoint. Transient failures are retried with
// exponential backoff; after the attempt budget is exhausted the error
// propagates to the caller with no partial results.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	strict    bool
	retry     retry.Policy
	logger    *slog.Logger
}

// NewOpenAIEmbedder creates an embedder from cfg. Zero-value fields fall
// back to the text-embedding-3-small defaults.
func NewOpenAIEmbedder(cfg Config, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIEmbedder{
		client:    &client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		strict:    cfg.StrictDimensions,
		retry:     cfg.Retry,
		logger:    logger,
	}, nil
}

// Dimension returns the configured output vector length.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// EmbedOne embeds a single text.
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany embeds texts in batches, preserving input order.
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatch embeds a single batch under the retry policy. Rate limits and
// server errors are retried; anything else fails immediately.
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return retry.Permanent(fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			if len(data.Embedding) != e.dimension {
				if e.strict {
					return retry.Permanent(fmt.Errorf("%w: got %d, expected %d",
						ErrDimensionMismatch, len(data.Embedding), e.dimension))
				}
				e.logger.Warn("unexpected embedding dimension",
					"got", len(data.Embedding), "expected", e.dimension)
			}
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	if err := e.retry.Do(ctx, operation); err != nil {
		return nil, err
	}
	return vectors, nil
}

// TestConnection embeds a canary string and checks the output dimension.
// The canary is exactly one request, bypassing both the backoff policy and
// the client's built-in retries; a health check should answer fast, not
// sit through a backoff schedule.
func (e *OpenAIEmbedder) TestConnection(ctx context.Context) bool {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{"test"},
		},
		Model: openai.EmbeddingModel(e.model),
	}, option.WithMaxRetries(0))
	if err != nil {
		e.logger.Error("embedding connection test failed", "error", err)
		return false
	}
	return len(resp.Data) == 1 && len(resp.Data[0].Embedding) == e.dimension
}

// isTransient reports whether err is worth retrying: rate limits and
// server-side failures.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Transport-level errors (connection reset, timeout) have no status.
	return true
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
