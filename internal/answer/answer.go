// Package answer turns retrieved chunks into grounded answers and source
// citations, refusing to answer from anything outside the book.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/bookrag/internal/storage"
)

const (
	// NoInformationAnswer is returned verbatim when retrieval comes back
	// empty. Clients match on this string.
	NoInformationAnswer = "I couldn't find information about that in this book."

	// SelectedTextPrefix marks answers produced from user-selected text
	// rather than retrieval.
	SelectedTextPrefix = "Based on your selected text: "

	// maxHistoryTurns bounds how much prior conversation reaches the
	// generation prompt.
	maxHistoryTurns = 2
)

// systemPrompt constrains generation to the supplied context excerpts.
const systemPrompt = `You are a helpful assistant answering questions about a book.

CRITICAL INSTRUCTIONS:
1. Answer ONLY based on the provided context excerpts below.
2. If the context doesn't contain enough information to answer the question, respond: "I couldn't find information about that in this book."
3. Always cite the source (chapter and section) in your answer when referencing specific information.
4. Be concise but complete.
5. Do NOT use any external knowledge or make assumptions beyond what's in the context.

Format your citations like: "According to Chapter X, Section Y, ..."
`

// Turn is one prior exchange in a conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Answerer builds grounded prompts and delegates generation.
type Answerer struct {
	generator Generator
	logger    *slog.Logger
}

// NewAnswerer wires a generation backend into the answering layer.
func NewAnswerer(generator Generator, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{generator: generator, logger: logger}
}

// FromContext answers query using only the retrieved chunks. With no chunks
// it returns NoInformationAnswer without invoking the generator at all, so
// an empty retrieval can never hallucinate. Up to the last two history
// turns are included for follow-up questions.
func (a *Answerer) FromContext(ctx context.Context, query string, chunks []storage.RetrievedChunk, history []Turn) (string, error) {
	if len(chunks) == 0 {
		return NoInformationAnswer, nil
	}

	messages := []Message{{Role: "system", Content: systemPrompt}}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		messages = append(messages, Message{Role: turn.Role, Content: turn.Content})
	}

	userMessage := fmt.Sprintf("Context:\n---\n%s\n---\n\nQuestion: %s\n\nAnswer:",
		formatContext(chunks), query)
	messages = append(messages, Message{Role: "user", Content: userMessage})

	text, err := a.generator.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	a.logger.Info("generated answer", "chars", len(text), "chunks", len(chunks))
	return text, nil
}

// FromSelectedText answers query using only a passage the user selected,
// bypassing retrieval. The answer carries SelectedTextPrefix so clients can
// distinguish it from full-book answers.
func (a *Answerer) FromSelectedText(ctx context.Context, query, selectedText string) (string, error) {
	userMessage := fmt.Sprintf("Context (user-selected text):\n---\n%s\n---\n\nQuestion: %s\n\nAnswer ONLY based on the selected text above. If the selected text doesn't contain the answer, say so.\n\nAnswer:",
		selectedText, query)

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}

	text, err := a.generator.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	a.logger.Info("generated selected-text answer", "chars", len(text))
	return SelectedTextPrefix + text, nil
}

// formatContext renders chunks as labeled excerpts. Each chunk gets a
// [Chapter, Section] header so the model can cite its sources; the source
// file stands in when both labels are missing.
func formatContext(chunks []storage.RetrievedChunk) string {
	var b strings.Builder
	for _, rc := range chunks {
		var labels []string
		if rc.Chunk.Chapter != "" {
			labels = append(labels, rc.Chunk.Chapter)
		}
		if rc.Chunk.Section != "" {
			labels = append(labels, rc.Chunk.Section)
		}
		header := strings.Join(labels, ", ")
		if header == "" {
			header = rc.Chunk.SourceFile
			if header == "" {
				header = "Unknown"
			}
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", header, rc.Chunk.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
