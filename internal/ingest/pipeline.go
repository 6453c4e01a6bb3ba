// Package ingest orchestrates the full ingestion flow: discover markdown,
// parse structure, chunk, embed and store, with every run recorded in the
// log store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/markdown"
	"github.com/bull/bookrag/internal/source"
	"github.com/bull/bookrag/internal/storage"
)

// Embedder is the slice of the embedding layer the pipeline needs.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the slice of the vector index the pipeline needs.
type ChunkStore interface {
	EnsureCollection(ctx context.Context) error
	UpsertChunks(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) (int, error)
}

// RunLogger records ingestion runs. Both calls must succeed for a run to be
// auditable, so their errors are fatal unlike query logging.
type RunLogger interface {
	StartIngestion(ctx context.Context, metadata map[string]any) (string, error)
	CompleteIngestion(ctx context.Context, id string, totalFiles, totalChunks int, errMessage string) error
}

// Result summarizes a completed ingestion run.
type Result struct {
	LogID       string
	TotalFiles  int
	TotalChunks int
	Duration    time.Duration
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	source   source.Source
	parser   *markdown.Parser
	chunker  *chunker.Chunker
	embedder Embedder
	store    ChunkStore
	runLog   RunLogger
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline from its stages.
func NewPipeline(
	src source.Source,
	parser *markdown.Parser,
	ch *chunker.Chunker,
	embedder Embedder,
	store ChunkStore,
	runLog RunLogger,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   src,
		parser:   parser,
		chunker:  ch,
		embedder: embedder,
		store:    store,
		runLog:   runLog,
		logger:   logger,
	}
}

// Run executes a full ingestion: list documents, chunk each one, embed all
// chunks in one batched pass, upsert, and finalize the run log. A source
// with no markdown files is an error, not an empty success. On failure the
// run log still records how far the run got.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	logID, err := p.runLog.StartIngestion(ctx, map[string]any{
		"chunk_size":    p.chunker.Config().ChunkSize,
		"chunk_overlap": p.chunker.Config().ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("start ingestion log: %w", err)
	}

	result, runErr := p.run(ctx)
	result.LogID = logID
	result.Duration = time.Since(start)

	errMessage := ""
	if runErr != nil {
		errMessage = runErr.Error()
	}
	if err := p.runLog.CompleteIngestion(ctx, logID, result.TotalFiles, result.TotalChunks, errMessage); err != nil {
		if runErr != nil {
			return result, fmt.Errorf("complete ingestion log: %v (run failed: %w)", err, runErr)
		}
		return result, fmt.Errorf("complete ingestion log: %w", err)
	}
	if runErr != nil {
		return result, runErr
	}

	p.logger.Info("ingestion complete",
		"files", result.TotalFiles,
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := p.store.EnsureCollection(ctx); err != nil {
		return result, fmt.Errorf("ensure collection: %w", err)
	}

	paths, err := p.source.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}
	if len(paths) == 0 {
		return result, fmt.Errorf("no markdown files found in source")
	}
	p.logger.Info("found documents", "count", len(paths))

	var allChunks []chunker.Chunk
	for _, docPath := range paths {
		chunks, err := p.processDocument(ctx, docPath)
		if err != nil {
			return result, fmt.Errorf("process %s: %w", docPath, err)
		}
		allChunks = append(allChunks, chunks...)
		result.TotalFiles++
	}
	result.TotalChunks = len(allChunks)

	texts := make([]string, len(allChunks))
	for i, c := range allChunks {
		texts[i] = c.Text
	}

	p.logger.Info("embedding chunks", "count", len(texts))
	vectors, err := p.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embed chunks: %w", err)
	}

	written, err := p.store.UpsertChunks(ctx, allChunks, vectors)
	if err != nil {
		return result, fmt.Errorf("store chunks: %w", err)
	}
	p.logger.Info("stored chunks", "points", written)

	return result, nil
}

// processDocument fetches and chunks one document. Structural metadata falls
// back to the file stem when the document has no headings.
func (p *Pipeline) processDocument(ctx context.Context, docPath string) ([]chunker.Chunk, error) {
	doc, err := p.source.Fetch(ctx, docPath)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	content := markdown.StripFrontmatter(doc.Content)
	chapter, section := p.parser.ChapterAndSection(content)
	headingPath := p.parser.HeadingPath(content)

	stem := fileStem(docPath)
	if chapter == "" {
		chapter = stem
	}
	if len(headingPath) == 0 {
		headingPath = []string{stem}
	}

	chunks := p.chunker.ChunkText(content, chunker.Metadata{
		SourceFile:  path.Base(docPath),
		Chapter:     chapter,
		Section:     section,
		HeadingPath: headingPath,
	})

	p.logger.Debug("chunked document",
		"path", docPath, "chapter", chapter, "chunks", len(chunks))
	return chunks, nil
}

// fileStem returns the file name without directory or extension.
func fileStem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// compile-time checks that the real implementations satisfy the pipeline's
// interfaces.
var (
	_ ChunkStore = (*storage.QdrantIndex)(nil)
)
