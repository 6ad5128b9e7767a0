package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_UpsertGetRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := &jobs.Record{
		ID:        "job-1",
		Kind:      jobs.KindDocument,
		OwnerID:   "owner-1",
		Filename:  "paper.pdf",
		Status:    jobs.StatusCompleted,
		Progress:  100,
		Content:   "# LoRA\n\nbody",
		Title:     "LoRA",
		DOI:       "10.1000/xyz",
		ArxivID:   "2106.09685",
		Embedding: []float64{0.25, -0.5},
		Methods:   []string{"low-rank adaptation"},
		Tags:      []jobs.TagSuggestion{{Name: "nlp", Confidence: 0.92, Reason: "language models"}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Upsert(ctx, rec))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.Embedding, got.Embedding)
	assert.Equal(t, rec.Methods, got.Methods)
	assert.Equal(t, rec.Tags, got.Tags)
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &jobs.Record{ID: "job-1", Status: jobs.StatusQueued}))
	require.NoError(t, s.Upsert(ctx, &jobs.Record{ID: "job-1", Status: jobs.StatusFailed, Error: "boom"}))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_List(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &jobs.Record{ID: "a", CreatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, s.Upsert(ctx, &jobs.Record{ID: "b", CreatedAt: time.Now()}))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Upsert(context.Background(), &jobs.Record{ID: "persisted"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.ID)
}
