package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/oMygpt/readitdeep/internal/jobs"
	"github.com/oMygpt/readitdeep/internal/store"
)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	failOn  int // 1-based call index that fails; 0 never fails
	release chan struct{}
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, userPrompt string) (string, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.failOn > 0 && n == f.failOn {
		return "", fmt.Errorf("provider unavailable")
	}
	return "translated:" + userPrompt, nil
}

const englishParagraph = "Large language models are trained on vast corpora of text. " +
	"They learn statistical regularities that transfer to downstream tasks."

func newTranslatorFixture(t *testing.T, content string, completer *fakeCompleter, maxChunk int) (*Translator, *store.Dual) {
	t.Helper()
	dual := store.NewDual(store.NewMemoryStore(), noopDurable{})
	require.NoError(t, dual.Create(context.Background(), &jobs.Record{
		ID:      "doc-1",
		Kind:    jobs.KindDocument,
		OwnerID: "owner-1",
		Status:  jobs.StatusCompleted,
		Title:   "Some Paper",
		Content: content,
	}))
	return NewTranslator(dual, completer, maxChunk), dual
}

type noopDurable struct{}

func (noopDurable) Get(context.Context, string) (*jobs.Record, error) { return nil, store.ErrNotFound }
func (noopDurable) Upsert(context.Context, *jobs.Record) error        { return nil }
func (noopDurable) List(context.Context) ([]*jobs.Record, error)      { return nil, nil }
func (noopDurable) Close() error                                      { return nil }

func TestTranslator_Start_TranslatesAllChunks(t *testing.T) {
	content := englishParagraph + "\n\n" + englishParagraph + "\n\n" + englishParagraph
	tr, dual := newTranslatorFixture(t, content, &fakeCompleter{}, 150)
	ctx := context.Background()

	jobID, err := tr.Start(ctx, "doc-1", "owner-1", language.Chinese)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, err := dual.Get(ctx, jobID)
		return err == nil && rec.Status == jobs.StatusCompleted
	}, time.Second, 10*time.Millisecond)

	rec, err := dual.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.KindTranslation, rec.Kind)
	assert.Equal(t, "doc-1", rec.DocumentID)
	assert.Equal(t, "zh", rec.TargetLanguage)
	assert.Equal(t, "en", rec.SourceLanguage)
	assert.Equal(t, rec.ChunksTotal, rec.ChunksDone)
	assert.Greater(t, rec.ChunksTotal, 1)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, rec.ChunksTotal, strings.Count(rec.TranslatedContent, "translated:"))
}

func TestTranslator_Start_DeduplicatesInFlight(t *testing.T) {
	completer := &fakeCompleter{release: make(chan struct{})}
	tr, dual := newTranslatorFixture(t, englishParagraph, completer, 3000)
	ctx := context.Background()

	first, err := tr.Start(ctx, "doc-1", "owner-1", language.Chinese)
	require.NoError(t, err)
	second, err := tr.Start(ctx, "doc-1", "owner-1", language.Chinese)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A different target language is a different translation.
	other, err := tr.Start(ctx, "doc-1", "owner-1", language.French)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	close(completer.release)
	require.Eventually(t, func() bool {
		rec, err := dual.Get(ctx, first)
		return err == nil && rec.Status == jobs.StatusCompleted
	}, time.Second, 10*time.Millisecond)
	tr.Wait()

	// Once finished, a new run is allowed again.
	third, err := tr.Start(ctx, "doc-1", "owner-1", language.Chinese)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	tr.Wait()
}

func TestTranslator_Run_FailurePreservesFinishedChunks(t *testing.T) {
	content := englishParagraph + "\n\n" + englishParagraph
	tr, dual := newTranslatorFixture(t, content, &fakeCompleter{failOn: 2}, 150)
	ctx := context.Background()

	jobID, err := tr.Start(ctx, "doc-1", "owner-1", language.Chinese)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, err := dual.Get(ctx, jobID)
		return err == nil && rec.Status == jobs.StatusFailed
	}, time.Second, 10*time.Millisecond)

	rec, err := dual.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ChunksDone)
	assert.Contains(t, rec.TranslatedContent, "translated:")
	assert.Contains(t, rec.Error, "chunk 2/2")
}

func TestTranslator_Start_RejectsDocumentWithoutContent(t *testing.T) {
	dual := store.NewDual(store.NewMemoryStore(), noopDurable{})
	require.NoError(t, dual.Create(context.Background(), &jobs.Record{
		ID:      "doc-empty",
		OwnerID: "owner-1",
		Status:  jobs.StatusCompleted,
	}))
	tr := NewTranslator(dual, &fakeCompleter{}, 3000)

	_, err := tr.Start(context.Background(), "doc-empty", "owner-1", language.Chinese)
	assert.ErrorIs(t, err, ErrDocumentNotReady)
}

func TestTranslator_Start_RejectsForeignOwner(t *testing.T) {
	tr, _ := newTranslatorFixture(t, englishParagraph, &fakeCompleter{}, 3000)
	_, err := tr.Start(context.Background(), "doc-1", "someone-else", language.Chinese)
	assert.ErrorIs(t, err, ErrNotOwner)
}
