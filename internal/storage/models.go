package storage

import "github.com/bull/bookrag/internal/chunker"

// DefaultCollection is the Qdrant collection holding all book chunks.
const DefaultCollection = "book_chunks"

// RetrievedChunk is a stored chunk returned from similarity search,
// together with its point ID and cosine similarity score. Ephemeral:
// produced per query, never written back.
type RetrievedChunk struct {
	ID    string
	Score float64
	Chunk chunker.Chunk
}

// CollectionInfo describes the configured collection.
type CollectionInfo struct {
	PointCount      uint64
	VectorDimension uint64
	DistanceMetric  string
}
