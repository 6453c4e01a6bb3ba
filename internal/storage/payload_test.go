package storage

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/bookrag/internal/chunker"
)

func TestChunkPayloadRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chunk := chunker.Chunk{
		Text:        "Spec-driven development starts with the spec.",
		Chapter:     "Chapter 1: Spec-Kit",
		Section:     "Introduction to Spec-Kit Plus",
		SourceFile:  "chapter-1-spec-kit.md",
		HeadingPath: []string{"Chapter 1: Spec-Kit", "Introduction to Spec-Kit Plus"},
		ChunkIndex:  3,
		TokenCount:  12,
		PageNumber:  17,
		CreatedAt:   created,
	}

	payload := chunkPayload(chunk)
	restored := chunkFromPayload(qdrant.NewValueMap(payload))

	assert.True(t, restored.CreatedAt.Equal(created), "created_at survives the round trip")
	restored.CreatedAt = chunk.CreatedAt
	assert.Equal(t, chunk, restored)
}

func TestChunkPayload_OmitsUnknownPageNumber(t *testing.T) {
	payload := chunkPayload(chunker.Chunk{Text: "t", CreatedAt: time.Now()})

	_, present := payload["page_number"]
	assert.False(t, present)
}

func TestChunkFromPayload_TolerantOfMissingFields(t *testing.T) {
	restored := chunkFromPayload(qdrant.NewValueMap(map[string]any{
		"text": "only text",
	}))

	assert.Equal(t, "only text", restored.Text)
	assert.Empty(t, restored.Chapter)
	assert.Nil(t, restored.HeadingPath)
	assert.True(t, restored.CreatedAt.IsZero())
}

func TestNewQdrantIndex_RejectsBadDimension(t *testing.T) {
	_, err := NewQdrantIndex(Config{Host: "localhost", Port: 6334, Dimension: 0}, nil)
	require.Error(t, err)
}
