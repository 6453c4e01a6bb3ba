package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/storage"
)

// fakeGenerator records the conversation it was given and returns a canned
// answer.
type fakeGenerator struct {
	messages []Message
	answer   string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func retrieved(text, chapter, section string, score float64) storage.RetrievedChunk {
	return storage.RetrievedChunk{
		ID:    "id-" + text,
		Score: score,
		Chunk: chunker.Chunk{
			Text:       text,
			Chapter:    chapter,
			Section:    section,
			SourceFile: "chapter-1-spec-kit.md",
		},
	}
}

func TestFromContext_NoChunksShortCircuits(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("generator must not be called")}
	a := NewAnswerer(gen, nil)

	got, err := a.FromContext(context.Background(), "anything?", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, got)
	assert.Nil(t, gen.messages)
}

func TestFromContext_BuildsGroundedPrompt(t *testing.T) {
	gen := &fakeGenerator{answer: "According to Chapter 1, Section Intro, yes."}
	a := NewAnswerer(gen, nil)

	chunks := []storage.RetrievedChunk{
		retrieved("First excerpt.", "Chapter 1", "Intro", 0.9),
		retrieved("Second excerpt.", "Chapter 2", "", 0.7),
	}
	got, err := a.FromContext(context.Background(), "Is it so?", chunks, nil)

	require.NoError(t, err)
	assert.Equal(t, "According to Chapter 1, Section Intro, yes.", got)

	require.Len(t, gen.messages, 2)
	assert.Equal(t, "system", gen.messages[0].Role)
	assert.Contains(t, gen.messages[0].Content, "Answer ONLY based on the provided context")

	user := gen.messages[1]
	assert.Equal(t, "user", user.Role)
	assert.Contains(t, user.Content, "[Chapter 1, Intro]\nFirst excerpt.")
	assert.Contains(t, user.Content, "[Chapter 2]\nSecond excerpt.")
	assert.Contains(t, user.Content, "Question: Is it so?")
}

func TestFromContext_LimitsHistoryToTwoTurns(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	a := NewAnswerer(gen, nil)

	history := []Turn{
		{Role: "user", Content: "turn one"},
		{Role: "assistant", Content: "turn two"},
		{Role: "user", Content: "turn three"},
		{Role: "assistant", Content: "turn four"},
	}
	_, err := a.FromContext(context.Background(), "q",
		[]storage.RetrievedChunk{retrieved("x", "C", "S", 0.5)}, history)

	require.NoError(t, err)
	// system + 2 history turns + user prompt
	require.Len(t, gen.messages, 4)
	assert.Equal(t, "turn three", gen.messages[1].Content)
	assert.Equal(t, "turn four", gen.messages[2].Content)
}

func TestFromContext_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("backend down")}
	a := NewAnswerer(gen, nil)

	_, err := a.FromContext(context.Background(), "q",
		[]storage.RetrievedChunk{retrieved("x", "C", "S", 0.5)}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestFromSelectedText_PrependsDisclaimer(t *testing.T) {
	gen := &fakeGenerator{answer: "It means exactly that."}
	a := NewAnswerer(gen, nil)

	got, err := a.FromSelectedText(context.Background(), "What does it mean?", "The passage.")

	require.NoError(t, err)
	assert.Equal(t, SelectedTextPrefix+"It means exactly that.", got)

	require.Len(t, gen.messages, 2)
	assert.Contains(t, gen.messages[1].Content, "Context (user-selected text):")
	assert.Contains(t, gen.messages[1].Content, "The passage.")
	assert.Contains(t, gen.messages[1].Content, "Answer ONLY based on the selected text above.")
}

func TestFormatContext_FallsBackToSourceFile(t *testing.T) {
	chunks := []storage.RetrievedChunk{{
		Chunk: chunker.Chunk{Text: "orphan text", SourceFile: "notes.md"},
	}}

	got := formatContext(chunks)

	assert.True(t, strings.HasPrefix(got, "[notes.md]\n"), "got %q", got)
}
