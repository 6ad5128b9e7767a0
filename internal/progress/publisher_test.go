package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oMygpt/readitdeep/internal/jobs"
	"github.com/oMygpt/readitdeep/internal/store"
)

type noopDurable struct{}

func (noopDurable) Get(context.Context, string) (*jobs.Record, error) { return nil, store.ErrNotFound }
func (noopDurable) Upsert(context.Context, *jobs.Record) error        { return nil }
func (noopDurable) List(context.Context) ([]*jobs.Record, error)      { return nil, nil }
func (noopDurable) Close() error                                      { return nil }

func newDual(t *testing.T, rec *jobs.Record) *store.Dual {
	t.Helper()
	dual := store.NewDual(store.NewMemoryStore(), noopDurable{})
	require.NoError(t, dual.Create(context.Background(), rec))
	return dual
}

func collect(events <-chan Event) []Event {
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestPublisher_Stream_TerminalAtSubscribeYieldsSingleDone(t *testing.T) {
	dual := newDual(t, &jobs.Record{ID: "job-1", Status: jobs.StatusCompleted, Progress: 100})
	p := NewPublisher(dual, 5*time.Millisecond, time.Second)

	events, err := p.Stream(context.Background(), "job-1")
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 1)
	assert.Equal(t, EventDone, got[0].Type)
	assert.Equal(t, jobs.StatusCompleted, got[0].Snapshot.Status)
}

func TestPublisher_Stream_UnknownJob(t *testing.T) {
	dual := store.NewDual(store.NewMemoryStore(), noopDurable{})
	p := NewPublisher(dual, 5*time.Millisecond, time.Second)

	_, err := p.Stream(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPublisher_Stream_EmitsDeltasThenDone(t *testing.T) {
	dual := newDual(t, &jobs.Record{ID: "job-1", Status: jobs.StatusQueued})
	p := NewPublisher(dual, 5*time.Millisecond, time.Second)
	ctx := context.Background()

	events, err := p.Stream(ctx, "job-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = dual.Update(ctx, "job-1", func(rec *jobs.Record) {
			rec.Status = jobs.StatusConverting
			rec.Progress = 25
		})
		time.Sleep(20 * time.Millisecond)
		_, _ = dual.Update(ctx, "job-1", func(rec *jobs.Record) {
			rec.Status = jobs.StatusCompleted
			rec.Progress = 100
		})
	}()

	got := collect(events)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, EventUpdate, got[0].Type)
	assert.Equal(t, jobs.StatusQueued, got[0].Snapshot.Status)

	last := got[len(got)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, jobs.StatusCompleted, last.Snapshot.Status)

	// Delta-only: no two consecutive events may carry the same snapshot.
	for i := 1; i < len(got); i++ {
		assert.NotEqual(t, got[i-1].Snapshot, got[i].Snapshot)
	}
}

func TestPublisher_Stream_TimesOutWithoutTerminalStatus(t *testing.T) {
	dual := newDual(t, &jobs.Record{ID: "job-1", Status: jobs.StatusConverting})
	p := NewPublisher(dual, 5*time.Millisecond, 50*time.Millisecond)

	events, err := p.Stream(context.Background(), "job-1")
	require.NoError(t, err)

	got := collect(events)
	require.NotEmpty(t, got)
	assert.Equal(t, EventTimeout, got[len(got)-1].Type)
}

func TestPublisher_Stream_ReaderCancelStopsLoop(t *testing.T) {
	dual := newDual(t, &jobs.Record{ID: "job-1", Status: jobs.StatusConverting})
	p := NewPublisher(dual, 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := p.Stream(ctx, "job-1")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
