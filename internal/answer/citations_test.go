package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/storage"
)

func TestCitationURL(t *testing.T) {
	url := CitationURL("chapter-1-spec-kit.md", "Introduction to Spec-Kit Plus")
	assert.Equal(t, "/docs/chapter-1-spec-kit#introduction-to-spec-kit-plus", url)
}

func TestCitationURL_NoSection(t *testing.T) {
	assert.Equal(t, "/docs/chapter-2", CitationURL("chapter-2.md", ""))
}

func TestCitationURL_ApostropheDropped(t *testing.T) {
	url := CitationURL("appendix.md", "The Reader's Guide")
	assert.Equal(t, "/docs/appendix#the-readers-guide", url)
}

func TestCitations(t *testing.T) {
	longText := strings.Repeat("0123456789", 30)
	chunks := []storage.RetrievedChunk{
		{
			Score: 0.87,
			Chunk: chunker.Chunk{
				Text:       longText,
				Chapter:    "Chapter 1: Spec-Kit",
				Section:    "Introduction to Spec-Kit Plus",
				SourceFile: "chapter-1-spec-kit.md",
			},
		},
		{
			Score: 0.42,
			Chunk: chunker.Chunk{
				Text:       "short",
				SourceFile: "preface.md",
			},
		},
	}

	citations := Citations(chunks)
	require.Len(t, citations, 2)

	first := citations[0]
	assert.Equal(t, "Chapter 1: Spec-Kit", first.Chapter)
	assert.Equal(t, "Introduction to Spec-Kit Plus", first.Section)
	assert.Equal(t, "chapter-1-spec-kit.md", first.File)
	assert.Equal(t, "/docs/chapter-1-spec-kit#introduction-to-spec-kit-plus", first.URL)
	assert.Equal(t, 0.87, first.SimilarityScore)
	assert.Len(t, first.Excerpt, 200)
	assert.Equal(t, longText[:200], first.Excerpt)

	second := citations[1]
	assert.Equal(t, "Unknown", second.Chapter)
	assert.Empty(t, second.Section)
	assert.Equal(t, "/docs/preface", second.URL)
	assert.Equal(t, "short", second.Excerpt)
}

func TestCitations_Empty(t *testing.T) {
	assert.Empty(t, Citations(nil))
}
