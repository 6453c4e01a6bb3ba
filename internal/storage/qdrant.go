// Package storage persists chunk vectors and metadata in Qdrant and serves
// threshold-filtered similarity search over them.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/retry"
)

// upsertBatchSize bounds points per upsert request.
const upsertBatchSize = 100

// Config holds Qdrant connection and collection settings. Dimension is
// fixed per collection; every upsert and query must match it exactly.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantIndex wraps the Qdrant gRPC client with connection management,
// dimension validation and batched writes.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *slog.Logger
}

// NewQdrantIndex connects to Qdrant and verifies health with retry, failing
// fast if the server stays unreachable.
func NewQdrantIndex(cfg Config, logger *slog.Logger) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.Dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}

	policy := retry.Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     10 * time.Second,
	}
	if err := policy.Do(context.Background(), func() error {
		return idx.Health(context.Background())
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return idx, nil
}

// Health performs a single health check against Qdrant.
func (s *QdrantIndex) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the chunk collection if it does not exist:
// cosine distance, configured dimension, keyword index on chapter for
// filtered search. Idempotent.
func (s *QdrantIndex) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "chapter",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create chapter index: %w", err)
	}

	return nil
}

// UpsertChunks writes chunks with their embedding vectors, assigning each
// point a fresh UUID. Returns the number of points written. A chunk/vector
// count mismatch or a wrong vector dimension fails before anything is sent.
func (s *QdrantIndex) UpsertChunks(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("%w: %d chunks, %d vectors", ErrChunkVectorMismatch, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	for i, vector := range vectors {
		if len(vector) != s.dimension {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vector), s.dimension)
		}
	}

	written := 0
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.New().String()),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(chunkPayload(chunks[i])),
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return written, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		written += len(points)
		s.logger.Debug("upserted batch", "points", len(points), "total", written)
	}

	return written, nil
}

// upsertWithRetry performs an upsert with exponential backoff.
func (s *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	policy := retry.Policy{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     10 * time.Second,
	}
	return policy.Do(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	})
}

// Search returns up to topK chunks ordered by descending cosine similarity,
// excluding anything below scoreThreshold. An empty chapter applies no
// metadata filter.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, topK int, scoreThreshold float32, chapter string) ([]RetrievedChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	var filter *qdrant.Filter
	if chapter != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("chapter", chapter)},
		}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		ScoreThreshold: qdrant.PtrOf(scoreThreshold),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	retrieved := make([]RetrievedChunk, 0, len(results))
	for _, result := range results {
		retrieved = append(retrieved, RetrievedChunk{
			ID:    result.Id.GetUuid(),
			Score: float64(result.Score),
			Chunk: chunkFromPayload(result.Payload),
		})
	}

	return retrieved, nil
}

// Info returns collection statistics.
func (s *QdrantIndex) Info(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	params := collection.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return &CollectionInfo{
		PointCount:      collection.GetPointsCount(),
		VectorDimension: params.GetSize(),
		DistanceMetric:  params.GetDistance().String(),
	}, nil
}

// TestConnection reports whether the configured collection exists. It never
// returns an error; health checks want a plain boolean.
func (s *QdrantIndex) TestConnection(ctx context.Context) bool {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		s.logger.Error("qdrant connection test failed", "error", err)
		return false
	}
	for _, name := range collections {
		if name == s.collection {
			return true
		}
	}
	s.logger.Warn("collection not found", "collection", s.collection)
	return false
}

// ClearCollection deletes and recreates the collection. Used for full
// re-ingestion.
func (s *QdrantIndex) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the client connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// chunkPayload flattens a chunk into a Qdrant payload map.
func chunkPayload(c chunker.Chunk) map[string]any {
	headingPath := make([]any, len(c.HeadingPath))
	for i, h := range c.HeadingPath {
		headingPath[i] = h
	}

	payload := map[string]any{
		"text":         c.Text,
		"chapter":      c.Chapter,
		"section":      c.Section,
		"source_file":  c.SourceFile,
		"heading_path": headingPath,
		"chunk_index":  c.ChunkIndex,
		"token_count":  c.TokenCount,
		"created_at":   c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.PageNumber > 0 {
		payload["page_number"] = c.PageNumber
	}
	return payload
}

// chunkFromPayload rebuilds a chunk from a search result payload.
func chunkFromPayload(payload map[string]*qdrant.Value) chunker.Chunk {
	var headingPath []string
	if list := payload["heading_path"].GetListValue(); list != nil {
		for _, v := range list.Values {
			headingPath = append(headingPath, v.GetStringValue())
		}
	}

	createdAt, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue())
	if err != nil {
		createdAt = time.Time{}
	}

	return chunker.Chunk{
		Text:        payload["text"].GetStringValue(),
		Chapter:     payload["chapter"].GetStringValue(),
		Section:     payload["section"].GetStringValue(),
		SourceFile:  payload["source_file"].GetStringValue(),
		HeadingPath: headingPath,
		ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
		TokenCount:  int(payload["token_count"].GetIntegerValue()),
		PageNumber:  int(payload["page_number"].GetIntegerValue()),
		CreatedAt:   createdAt,
	}
}
