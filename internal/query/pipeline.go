// Package query runs the retrieval-augmented answer flow: sanitize the
// question, embed it, search the index, generate a grounded answer and log
// the exchange.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bull/bookrag/internal/answer"
	"github.com/bull/bookrag/internal/logstore"
	"github.com/bull/bookrag/internal/storage"
)

// Defaults for retrieval.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
)

var (
	quotePattern  = regexp.MustCompile(`[';"\\]`)
	scriptPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	tagPattern    = regexp.MustCompile(`<.*?>`)
)

// Embedder is the slice of the embedding layer the pipeline needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the slice of the vector index the pipeline needs.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, scoreThreshold float32, chapter string) ([]storage.RetrievedChunk, error)
}

// QueryLogger records completed exchanges. Logging is best-effort: a failed
// write never suppresses an answer the user already paid for.
type QueryLogger interface {
	LogQuery(ctx context.Context, log logstore.QueryLog) (string, error)
}

// Request is a question against the book.
type Request struct {
	SessionID string
	Query     string
	// SelectedText switches the pipeline to selected-text mode, answering
	// from this passage only with no retrieval.
	SelectedText string
	// History holds prior turns for follow-up questions. Only the most
	// recent turns reach the prompt.
	History []answer.Turn
	// TopK and SimilarityThreshold override the defaults when positive.
	TopK                int
	SimilarityThreshold float32
}

// Response is the answer with its provenance.
type Response struct {
	Answer         string                  `json:"answer"`
	Sources        []answer.SourceCitation `json:"sources"`
	Mode           string                  `json:"mode"`
	SessionID      string                  `json:"session_id"`
	ResponseTimeMS int                     `json:"response_time_ms"`
}

// Pipeline orchestrates query handling.
type Pipeline struct {
	embedder Embedder
	searcher VectorSearcher
	answerer *answer.Answerer
	queryLog QueryLogger
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a query pipeline. queryLog may be nil to disable
// logging entirely.
func NewPipeline(
	embedder Embedder,
	searcher VectorSearcher,
	answerer *answer.Answerer,
	queryLog QueryLogger,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder: embedder,
		searcher: searcher,
		answerer: answerer,
		queryLog: queryLog,
		logger:   logger,
		now:      time.Now,
	}
}

// Ask answers a question. Selected-text requests skip retrieval entirely;
// full-book requests embed the question, search above the similarity
// threshold and ground the answer in whatever comes back. When nothing
// clears the threshold the fixed no-information answer is returned without
// touching the generator.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Response, error) {
	start := p.now()

	query := Sanitize(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is empty after sanitization")
	}

	if req.SelectedText != "" {
		return p.askSelected(ctx, req, query, start)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	threshold := req.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	vector, err := p.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := p.searcher.Search(ctx, vector, topK, threshold, "")
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	p.logger.Info("retrieved chunks", "count", len(chunks), "top_k", topK)

	text, err := p.answerer.FromContext(ctx, query, chunks, req.History)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Answer:         text,
		Sources:        answer.Citations(chunks),
		Mode:           logstore.ModeFullBook,
		SessionID:      req.SessionID,
		ResponseTimeMS: int(p.now().Sub(start).Milliseconds()),
	}
	p.log(ctx, query, "", resp)
	return resp, nil
}

// askSelected answers from the user's selected passage only.
func (p *Pipeline) askSelected(ctx context.Context, req Request, query string, start time.Time) (*Response, error) {
	text, err := p.answerer.FromSelectedText(ctx, query, req.SelectedText)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Answer:         text,
		Sources:        []answer.SourceCitation{},
		Mode:           logstore.ModeSelectedText,
		SessionID:      req.SessionID,
		ResponseTimeMS: int(p.now().Sub(start).Milliseconds()),
	}
	p.log(ctx, query, req.SelectedText, resp)
	return resp, nil
}

// log records the exchange. Failures are logged and swallowed.
func (p *Pipeline) log(ctx context.Context, query, selectedText string, resp *Response) {
	if p.queryLog == nil {
		return
	}

	sources, err := json.Marshal(resp.Sources)
	if err != nil {
		sources = []byte("[]")
	}

	_, err = p.queryLog.LogQuery(ctx, logstore.QueryLog{
		SessionID:      resp.SessionID,
		QueryText:      query,
		QueryMode:      resp.Mode,
		SelectedText:   selectedText,
		AnswerText:     resp.Answer,
		SourceChunks:   sources,
		ResponseTimeMS: resp.ResponseTimeMS,
	})
	if err != nil {
		p.logger.Error("failed to log query", "error", err)
	}
}

// Sanitize strips quoting, backslashes and HTML tags from user input before
// it reaches the prompt or the log database.
func Sanitize(text string) string {
	s := quotePattern.ReplaceAllString(text, "")
	s = scriptPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
