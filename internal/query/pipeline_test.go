package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/bookrag/internal/answer"
	"github.com/bull/bookrag/internal/chunker"
	"github.com/bull/bookrag/internal/logstore"
	"github.com/bull/bookrag/internal/storage"
)

type fakeEmbedder struct {
	lastText string
	vector   []float32
	err      error
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	f.lastText = text
	return f.vector, f.err
}

type fakeSearcher struct {
	lastTopK      int
	lastThreshold float32
	lastChapter   string
	results       []storage.RetrievedChunk
	err           error
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, topK int, scoreThreshold float32, chapter string) ([]storage.RetrievedChunk, error) {
	f.lastTopK = topK
	f.lastThreshold = scoreThreshold
	f.lastChapter = chapter
	return f.results, f.err
}

type fakeQueryLogger struct {
	logged []logstore.QueryLog
	err    error
}

func (f *fakeQueryLogger) LogQuery(ctx context.Context, log logstore.QueryLog) (string, error) {
	f.logged = append(f.logged, log)
	return "log-id", f.err
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []answer.Message) (string, error) {
	f.calls++
	return f.answer, f.err
}

func retrieved(text, chapter, section string, score float64) storage.RetrievedChunk {
	return storage.RetrievedChunk{
		Score: score,
		Chunk: chunker.Chunk{
			Text:       text,
			Chapter:    chapter,
			Section:    section,
			SourceFile: "chapter-1-spec-kit.md",
		},
	}
}

func newTestPipeline(emb *fakeEmbedder, search *fakeSearcher, gen *fakeGenerator, logs QueryLogger) *Pipeline {
	return NewPipeline(emb, search, answer.NewAnswerer(gen, nil), logs, nil)
}

func TestAsk_FullBook(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	search := &fakeSearcher{results: []storage.RetrievedChunk{
		retrieved("Relevant text.", "Chapter 1", "Intro", 0.85),
	}}
	gen := &fakeGenerator{answer: "According to Chapter 1, Section Intro, yes."}
	logs := &fakeQueryLogger{}

	p := newTestPipeline(emb, search, gen, logs)
	resp, err := p.Ask(context.Background(), Request{
		SessionID: "s1",
		Query:     "Is it covered?",
	})

	require.NoError(t, err)
	assert.Equal(t, "According to Chapter 1, Section Intro, yes.", resp.Answer)
	assert.Equal(t, logstore.ModeFullBook, resp.Mode)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, DefaultTopK, search.lastTopK)
	assert.Equal(t, float32(DefaultSimilarityThreshold), search.lastThreshold)
	assert.Empty(t, search.lastChapter)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "/docs/chapter-1-spec-kit#intro", resp.Sources[0].URL)
	assert.Equal(t, 0.85, resp.Sources[0].SimilarityScore)

	require.Len(t, logs.logged, 1)
	logged := logs.logged[0]
	assert.Equal(t, logstore.ModeFullBook, logged.QueryMode)
	assert.Equal(t, "Is it covered?", logged.QueryText)
	assert.Equal(t, resp.Answer, logged.AnswerText)
}

func TestAsk_NoMatchesSkipsGenerator(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	search := &fakeSearcher{} // nothing above threshold
	gen := &fakeGenerator{err: errors.New("must not be called")}
	logs := &fakeQueryLogger{}

	p := newTestPipeline(emb, search, gen, logs)
	resp, err := p.Ask(context.Background(), Request{SessionID: "s", Query: "Unknown topic?"})

	require.NoError(t, err)
	assert.Equal(t, answer.NoInformationAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0, gen.calls)
	// The empty exchange is still logged.
	require.Len(t, logs.logged, 1)
	assert.Equal(t, answer.NoInformationAnswer, logs.logged[0].AnswerText)
}

func TestAsk_SelectedTextSkipsRetrieval(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedder must not be called")}
	search := &fakeSearcher{err: errors.New("searcher must not be called")}
	gen := &fakeGenerator{answer: "It refers to the spec."}
	logs := &fakeQueryLogger{}

	p := newTestPipeline(emb, search, gen, logs)
	resp, err := p.Ask(context.Background(), Request{
		SessionID:    "s",
		Query:        "What does this mean?",
		SelectedText: "The chosen passage.",
	})

	require.NoError(t, err)
	assert.Equal(t, answer.SelectedTextPrefix+"It refers to the spec.", resp.Answer)
	assert.Equal(t, logstore.ModeSelectedText, resp.Mode)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, emb.lastText)

	require.Len(t, logs.logged, 1)
	assert.Equal(t, "The chosen passage.", logs.logged[0].SelectedText)
}

func TestAsk_LogFailureDoesNotSuppressAnswer(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	search := &fakeSearcher{results: []storage.RetrievedChunk{retrieved("t", "C", "S", 0.5)}}
	gen := &fakeGenerator{answer: "fine"}
	logs := &fakeQueryLogger{err: errors.New("disk full")}

	p := newTestPipeline(emb, search, gen, logs)
	resp, err := p.Ask(context.Background(), Request{SessionID: "s", Query: "q?"})

	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Answer)
}

func TestAsk_NilLoggerAllowed(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	search := &fakeSearcher{results: []storage.RetrievedChunk{retrieved("t", "C", "S", 0.5)}}
	gen := &fakeGenerator{answer: "fine"}

	p := NewPipeline(emb, search, answer.NewAnswerer(gen, nil), nil, nil)
	resp, err := p.Ask(context.Background(), Request{SessionID: "s", Query: "q?"})

	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Answer)
}

func TestAsk_SanitizesQuery(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	search := &fakeSearcher{results: []storage.RetrievedChunk{retrieved("t", "C", "S", 0.5)}}
	gen := &fakeGenerator{answer: "ok"}
	logs := &fakeQueryLogger{}

	p := newTestPipeline(emb, search, gen, logs)
	_, err := p.Ask(context.Background(), Request{
		SessionID: "s",
		Query:     `What's <b>this</b>; about?`,
	})

	require.NoError(t, err)
	assert.Equal(t, "Whats this about?", emb.lastText)
}

func TestAsk_EmptyAfterSanitization(t *testing.T) {
	p := newTestPipeline(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, nil)

	_, err := p.Ask(context.Background(), Request{Query: `"';\`})
	require.Error(t, err)
}

func TestAsk_OverridesRetrievalParams(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	search := &fakeSearcher{results: []storage.RetrievedChunk{retrieved("t", "C", "S", 0.9)}}
	gen := &fakeGenerator{answer: "ok"}

	p := newTestPipeline(emb, search, gen, nil)
	_, err := p.Ask(context.Background(), Request{
		Query:               "q?",
		TopK:                8,
		SimilarityThreshold: 0.6,
	})

	require.NoError(t, err)
	assert.Equal(t, 8, search.lastTopK)
	assert.Equal(t, float32(0.6), search.lastThreshold)
}

func TestAsk_EmbedError(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("backend down")}
	p := newTestPipeline(emb, &fakeSearcher{}, &fakeGenerator{}, nil)

	_, err := p.Ask(context.Background(), Request{Query: "q?"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain question`, "plain question"},
		{`has 'quotes' and "doubles"`, "has quotes and doubles"},
		{`<script>alert(1)</script>rest`, "rest"},
		{`keep <em>words</em> only`, "keep words only"},
		{"  padded  ", "padded"},
		{`back\slash`, "backslash"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Sanitize(tc.in), "input %q", tc.in)
	}
}
