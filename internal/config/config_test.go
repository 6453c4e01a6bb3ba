package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	cfg.OpenAIAPIKey = "test-key"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDim)
	assert.Equal(t, "localhost", cfg.QdrantHost)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, "book_chunks", cfg.QdrantCollection)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0.3, cfg.SimilarityThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "400")
	t.Setenv("SIMILARITY_THRESHOLD", "0.55")
	t.Setenv("QDRANT_USE_TLS", "true")
	t.Setenv("EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("EMBEDDING_DIMENSION", "768")

	cfg := Load()

	assert.Equal(t, 400, cfg.ChunkSize)
	assert.Equal(t, 0.55, cfg.SimilarityThreshold)
	assert.True(t, cfg.QdrantUseTLS)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, 768, cfg.EmbeddingDim)
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "lots")
	t.Setenv("SIMILARITY_THRESHOLD", "very high")

	cfg := Load()

	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 0.3, cfg.SimilarityThreshold)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAIAPIKey = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_OverlapTooLarge(t *testing.T) {
	cfg := validConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := validConfig()
	cfg.SimilarityThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg.SimilarityThreshold = -0.1
	assert.Error(t, cfg.Validate())
}

func TestValidate_TopK(t *testing.T) {
	cfg := validConfig()
	cfg.TopK = 0
	assert.Error(t, cfg.Validate())
}
