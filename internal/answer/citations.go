package answer

import (
	"strings"

	"github.com/bull/bookrag/internal/storage"
)

// excerptLimit caps citation excerpts.
const excerptLimit = 200

// SourceCitation points back to the book location a chunk came from.
type SourceCitation struct {
	Chapter         string  `json:"chapter"`
	Section         string  `json:"section,omitempty"`
	File            string  `json:"file"`
	URL             string  `json:"url"`
	SimilarityScore float64 `json:"similarity_score"`
	Excerpt         string  `json:"excerpt"`
}

// Citations builds one citation per retrieved chunk, in retrieval order.
func Citations(chunks []storage.RetrievedChunk) []SourceCitation {
	citations := make([]SourceCitation, 0, len(chunks))
	for _, rc := range chunks {
		chapter := rc.Chunk.Chapter
		if chapter == "" {
			chapter = "Unknown"
		}
		citations = append(citations, SourceCitation{
			Chapter:         chapter,
			Section:         rc.Chunk.Section,
			File:            rc.Chunk.SourceFile,
			URL:             CitationURL(rc.Chunk.SourceFile, rc.Chunk.Section),
			SimilarityScore: rc.Score,
			Excerpt:         excerpt(rc.Chunk.Text),
		})
	}
	return citations
}

// CitationURL derives a site link from a source file and section title.
// "chapter-1-spec-kit.md" with section "Introduction to Spec-Kit Plus"
// becomes "/docs/chapter-1-spec-kit#introduction-to-spec-kit-plus".
func CitationURL(sourceFile, section string) string {
	base := "/docs/" + strings.TrimSuffix(sourceFile, ".md")
	if section == "" {
		return base
	}
	return base + "#" + sectionSlug(section)
}

// sectionSlug lowercases a section title, hyphenates spaces and drops
// apostrophes.
func sectionSlug(section string) string {
	slug := strings.ToLower(section)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	return slug
}

// excerpt truncates chunk text to the citation limit.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit])
}
