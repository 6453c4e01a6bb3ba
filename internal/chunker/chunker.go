// Package chunker splits book text into token-bounded, overlapping chunks.
//
// Token counting uses the cl100k_base subword encoding so identical text
// always yields identical counts, which keeps chunk boundaries reproducible
// across ingestion runs and tests.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkSize is the soft per-chunk token limit.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is how many trailing tokens of a closed chunk are
	// carried into the next one.
	DefaultChunkOverlap = 100

	// encodingName is the OpenAI cl100k_base subword encoding.
	encodingName = "cl100k_base"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Soft chunk size limit in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
}

// DefaultConfig returns the standard book-ingestion configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Metadata is caller-supplied document context attached verbatim to every
// chunk produced from that document.
type Metadata struct {
	SourceFile  string
	Chapter     string
	Section     string
	HeadingPath []string
	PageNumber  int // 0 means unknown
}

// Chunk is the atomic unit of retrieval: a bounded slice of document text
// plus its structural position. Immutable once created.
type Chunk struct {
	Text        string
	Chapter     string
	Section     string
	SourceFile  string
	HeadingPath []string
	ChunkIndex  int
	TokenCount  int
	PageNumber  int
	CreatedAt   time.Time
}

// Chunker splits text on paragraph boundaries while staying under a token
// budget, carrying overlap context between consecutive chunks.
type Chunker struct {
	cfg Config
	enc *tiktoken.Tiktoken
	now func() time.Time
}

// New creates a Chunker with the given configuration. Zero or negative
// config values fall back to the defaults.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}

	return &Chunker{
		cfg: cfg,
		enc: enc,
		now: time.Now,
	}, nil
}

// Config returns the effective chunking configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// CountTokens returns the number of cl100k_base tokens in text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// ChunkText splits text into chunks of at most ChunkSize tokens. The limit
// is soft: a single sentence that exceeds it is emitted whole as its own
// oversized chunk. Empty input yields no chunks; text already under the
// limit yields exactly one chunk equal to the input.
func (c *Chunker) ChunkText(text string, meta Metadata) []Chunk {
	// Collapse runs of blank lines but keep paragraph structure.
	text = blankLines.ReplaceAllString(text, "\n\n")

	var (
		texts         []string
		current       []string
		currentTokens int
	)

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraTokens := c.CountTokens(para)

		switch {
		case paraTokens > c.cfg.ChunkSize:
			// Oversized paragraph: flush what we have, then pack its
			// sentences into sub-chunks.
			if len(current) > 0 {
				texts = append(texts, strings.Join(current, "\n\n"))
				current = nil
				currentTokens = 0
			}
			texts = append(texts, c.packSentences(para)...)

		case currentTokens+paraTokens <= c.cfg.ChunkSize:
			current = append(current, para)
			currentTokens += paraTokens

		default:
			// Close the current chunk and seed the next with overlap.
			texts = append(texts, strings.Join(current, "\n\n"))
			if overlap := c.overlapText(current); overlap != "" {
				current = []string{overlap, para}
			} else {
				current = []string{para}
			}
			currentTokens = c.CountTokens(strings.Join(current, "\n\n"))
		}
	}

	if len(current) > 0 {
		texts = append(texts, strings.Join(current, "\n\n"))
	}

	chunks := make([]Chunk, 0, len(texts))
	for i, chunkText := range texts {
		chunks = append(chunks, Chunk{
			Text:        chunkText,
			Chapter:     meta.Chapter,
			Section:     meta.Section,
			SourceFile:  meta.SourceFile,
			HeadingPath: meta.HeadingPath,
			ChunkIndex:  i,
			TokenCount:  c.CountTokens(chunkText),
			PageNumber:  meta.PageNumber,
			CreatedAt:   c.now().UTC(),
		})
	}
	return chunks
}

// packSentences greedily packs the sentences of an oversized paragraph into
// sub-chunks under the token limit. A single sentence over the limit is
// emitted as-is; sentences are the smallest unit we split on.
func (c *Chunker) packSentences(para string) []string {
	var (
		out    []string
		buf    []string
		tokens int
	)

	for _, sent := range splitSentences(para) {
		sentTokens := c.CountTokens(sent)
		if tokens+sentTokens <= c.cfg.ChunkSize {
			buf = append(buf, sent)
			tokens += sentTokens
			continue
		}
		if len(buf) > 0 {
			out = append(out, strings.Join(buf, " "))
		}
		buf = []string{sent}
		tokens = sentTokens
	}

	if len(buf) > 0 {
		out = append(out, strings.Join(buf, " "))
	}
	return out
}

// overlapText derives the overlap suffix carried into the next chunk: the
// last ChunkOverlap tokens of the most recent paragraph, decoded back to
// text, or the whole paragraph when it is shorter than the window.
func (c *Chunker) overlapText(current []string) string {
	if len(current) == 0 {
		return ""
	}

	last := current[len(current)-1]
	tokens := c.enc.Encode(last, nil, nil)
	if len(tokens) <= c.cfg.ChunkOverlap {
		return last
	}
	return c.enc.Decode(tokens[len(tokens)-c.cfg.ChunkOverlap:])
}

// splitSentences splits text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
