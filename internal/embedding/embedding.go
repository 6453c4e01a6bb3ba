// Package embedding converts text into fixed-dimension vectors.
//
// Exactly one backend is active per deployment, selected by configuration
// at startup. The OpenAI backend covers both the native API (1536-dim
// text-embedding-3-small) and OpenAI-compatible providers reached through a
// custom base URL, whose model families typically produce 768-dim vectors.
package embedding

import (
	"context"
	"errors"

	"github.com/bull/bookrag/internal/retry"
)

// DefaultBatchSize bounds texts per request to respect provider limits.
const DefaultBatchSize = 100

// ErrDimensionMismatch is returned (in strict mode) when a backend produces
// vectors of an unexpected length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds texts in order, returning one vector per input.
	// Requests are batched internally.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the backend's fixed output vector length.
	Dimension() int

	// TestConnection embeds a canary string and reports whether the backend
	// answered with a vector of the expected dimension. It never returns an
	// error; health checks want a plain boolean.
	TestConnection(ctx context.Context) bool
}

// Config selects and parameterizes the active embedding backend.
type Config struct {
	APIKey    string
	BaseURL   string // empty for api.openai.com, set for compatible providers
	Model     string
	Dimension int
	BatchSize int

	// StrictDimensions turns a response dimension mismatch into a hard
	// failure instead of a logged warning.
	StrictDimensions bool

	Retry retry.Policy
}
