package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/chunker"
	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/vectorstore"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ io.ReaderAt, _ int64) (string, error) {
	return f.text, f.err
}

type lineSplitter struct{}

func (lineSplitter) Split(_ context.Context, text string) []model.Chunk {
	var out []model.Chunk
	for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
		out = append(out, model.Chunk{Content: line, Index: i})
	}
	return out
}

var keywords = []string{"Alpha", "Beta", "Gamma", "Delta"}

// keywordEmbedder maps text onto keyword counts so similarity is predictable.
type keywordEmbedder struct {
	calls  int
	failAt int
	tasks  []string
}

func (e *keywordEmbedder) Embed(_ context.Context, text string, taskType string) ([]float32, error) {
	e.calls++
	e.tasks = append(e.tasks, taskType)
	if e.failAt > 0 && e.calls == e.failAt {
		return nil, errors.New("embedding quota exceeded")
	}
	vec := make([]float32, len(keywords)+1)
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(text, kw))
	}
	vec[len(keywords)] = 0.1
	return vec, nil
}

func (e *keywordEmbedder) ModelName() string { return "keyword" }

type fakeSynth struct {
	passages []string
	out      string
	err      error
}

func (f *fakeSynth) Answer(_ context.Context, _ string, passages []string) (string, error) {
	f.passages = passages
	return f.out, f.err
}

type flakyStore struct {
	vectorstore.Store
	adds   int
	failAt int
}

func (s *flakyStore) Add(ctx context.Context, records []model.Record) ([]string, error) {
	s.adds++
	if s.adds == s.failAt {
		return nil, errors.New("connection reset")
	}
	return s.Store.Add(ctx, records)
}

const sampleText = "Alpha is the first letter\nBeta comes second\nGamma is third\nDelta closes the set"

func newTestService(t *testing.T, emb *keywordEmbedder, store vectorstore.Store, synth *fakeSynth, batch int) *QAService {
	t.Helper()
	return NewQAService(&fakeExtractor{text: sampleText}, lineSplitter{}, emb, store, synth, QAConfig{
		Collection: "pdf_table",
		TopK:       3,
		BatchSize:  batch,
	})
}

func TestIngestThenAnswer(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	store := vectorstore.NewMemory()
	synth := &fakeSynth{out: "Alpha is first."}
	svc := newTestService(t, emb, store, synth, 2)

	chunks, err := svc.Ingest(ctx, Document{Name: "letters.pdf"})
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	require.Equal(t, "Alpha is the first letter", chunks[0].Content)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, &Stats{Collection: "pdf_table", Records: 4}, st)

	ans, err := svc.Answer(ctx, "  Tell me about Alpha ", 0)
	require.NoError(t, err)
	require.NotNil(t, ans.Text)
	require.Equal(t, "Alpha is first.", *ans.Text)
	require.Len(t, ans.Matches, 3)
	require.Equal(t, "Alpha is the first letter", ans.Matches[0].Text)
	for i := 1; i < len(ans.Matches); i++ {
		require.GreaterOrEqual(t, ans.Matches[i-1].Score, ans.Matches[i].Score)
	}
	// synthesizer saw exactly the returned matches
	require.Len(t, synth.passages, 3)
	for i, m := range ans.Matches {
		require.Equal(t, m.Text, synth.passages[i])
	}
	require.Equal(t, "RETRIEVAL_QUERY", emb.tasks[len(emb.tasks)-1])
	require.Equal(t, "RETRIEVAL_DOCUMENT", emb.tasks[0])
}

func TestAnswerHonoursK(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &keywordEmbedder{}, vectorstore.NewMemory(), &fakeSynth{out: "ok"}, 32)
	_, err := svc.Ingest(ctx, Document{})
	require.NoError(t, err)
	ans, err := svc.Answer(ctx, "Gamma", 1)
	require.NoError(t, err)
	require.Len(t, ans.Matches, 1)
	require.Equal(t, "Gamma is third", ans.Matches[0].Text)
}

func TestAnswerEmptyIndex(t *testing.T) {
	svc := newTestService(t, &keywordEmbedder{}, vectorstore.NewMemory(), &fakeSynth{}, 2)
	_, err := svc.Answer(context.Background(), "anything", 3)
	require.True(t, appErr.IsEmptyIndex(err))
}

func TestAnswerInvalidQuestion(t *testing.T) {
	svc := newTestService(t, &keywordEmbedder{}, vectorstore.NewMemory(), &fakeSynth{}, 2)
	_, err := svc.Answer(context.Background(), "   ", 3)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAnswerSynthesisFailedKeepsMatches(t *testing.T) {
	ctx := context.Background()
	synth := &fakeSynth{err: context.DeadlineExceeded}
	svc := newTestService(t, &keywordEmbedder{}, vectorstore.NewMemory(), synth, 2)
	_, err := svc.Ingest(ctx, Document{})
	require.NoError(t, err)

	ans, err := svc.Answer(ctx, "Beta", 3)
	require.True(t, appErr.IsSynthesisFailed(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, ans)
	require.Nil(t, ans.Text)
	require.Len(t, ans.Matches, 3)
	require.Equal(t, "Beta comes second", ans.Matches[0].Text)
}

func TestIngestPartialFailure(t *testing.T) {
	tests := []struct {
		name          string
		embedFailAt   int
		storeFailAt   int
		wantPersisted int
	}{
		{name: "embed_fails_in_second_batch", embedFailAt: 3, wantPersisted: 2},
		{name: "embed_fails_first", embedFailAt: 1, wantPersisted: 0},
		{name: "store_fails_second_batch", storeFailAt: 2, wantPersisted: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := vectorstore.NewMemory()
			store := &flakyStore{Store: mem, failAt: tt.storeFailAt}
			svc := newTestService(t, &keywordEmbedder{failAt: tt.embedFailAt}, store, &fakeSynth{}, 2)

			_, err := svc.Ingest(ctx, Document{Name: "x.pdf"})
			require.ErrorIs(t, err, appErr.ErrIngestionFailed)
			var ingErr *appErr.IngestionError
			require.ErrorAs(t, err, &ingErr)
			require.Equal(t, tt.wantPersisted, ingErr.Persisted)

			cnt, err := mem.Count(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(tt.wantPersisted), cnt)
		})
	}
}

func TestIngestMalformedDocument(t *testing.T) {
	svc := NewQAService(&fakeExtractor{err: appErr.ErrMalformedDocument}, lineSplitter{}, &keywordEmbedder{},
		vectorstore.NewMemory(), &fakeSynth{}, QAConfig{})
	_, err := svc.Ingest(context.Background(), Document{})
	require.ErrorIs(t, err, appErr.ErrMalformedDocument)
}

func TestIngestWithRealSplitter(t *testing.T) {
	ctx := context.Background()
	sp, err := chunker.NewSplitter(chunker.Options{Size: 30, Overlap: 10, Separator: "\n"})
	require.NoError(t, err)
	store := vectorstore.NewMemory()
	svc := NewQAService(&fakeExtractor{text: sampleText}, sp, &keywordEmbedder{}, store, &fakeSynth{out: "x"}, QAConfig{})
	chunks, err := svc.Ingest(ctx, Document{})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	cnt, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(len(chunks)), cnt)
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "héllo", Snippet("héllo", 10))
	require.Equal(t, "hé", Snippet("héllo", 2))
	require.Equal(t, "abc", Snippet("abc", 0))
}
