package progress

import (
	"context"
	"time"

	"github.com/oMygpt/readitdeep/internal/jobs"
	"github.com/oMygpt/readitdeep/internal/store"
	"github.com/oMygpt/readitdeep/pkg/log"
)

type EventType string

const (
	EventUpdate  EventType = "update"
	EventDone    EventType = "done"
	EventTimeout EventType = "timeout"
	EventError   EventType = "error"
)

// Snapshot is the observable slice of a job that streaming readers care
// about. Two equal snapshots mean no event is worth emitting.
type Snapshot struct {
	ID          string      `json:"id"`
	Status      jobs.Status `json:"status"`
	Progress    int         `json:"progress"`
	Error       string      `json:"error,omitempty"`
	ChunksDone  int         `json:"chunks_done,omitempty"`
	ChunksTotal int         `json:"chunks_total,omitempty"`
}

type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Publisher turns point-in-time job reads into pseudo-streams: each reader
// gets an independent poll loop that emits only deltas and closes after a
// terminal status or the bounded wait.
type Publisher struct {
	store        *store.Dual
	pollInterval time.Duration
	maxWait      time.Duration
}

func NewPublisher(dual *store.Dual, pollInterval, maxWait time.Duration) *Publisher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	return &Publisher{
		store:        dual,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// GetStatus is the point read behind the status endpoint.
func (p *Publisher) GetStatus(ctx context.Context, jobID string) (*jobs.Record, error) {
	return p.store.Get(ctx, jobID)
}

// Stream subscribes to a job. A job already terminal at subscribe time yields
// exactly one done event. Otherwise the current state is emitted immediately
// and further events only on change, until the job turns terminal, the
// reader's context ends, or maxWait elapses (a timeout event, not an error:
// the job keeps running server-side).
func (p *Publisher) Stream(ctx context.Context, jobID string) (<-chan Event, error) {
	rec, err := p.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 8)
	if rec.Status.Terminal() {
		events <- Event{Type: EventDone, Snapshot: snapshotOf(rec)}
		close(events)
		return events, nil
	}

	go p.poll(ctx, jobID, snapshotOf(rec), events)
	return events, nil
}

func (p *Publisher) poll(ctx context.Context, jobID string, last Snapshot, events chan<- Event) {
	defer close(events)

	if !emit(ctx, events, Event{Type: EventUpdate, Snapshot: last}) {
		return
	}

	deadline := time.NewTimer(p.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			emit(ctx, events, Event{Type: EventTimeout, Snapshot: last})
			return
		case <-ticker.C:
		}

		rec, err := p.store.Get(ctx, jobID)
		if err != nil {
			log.Warn("Stream for job %s: %v", jobID, err)
			emit(ctx, events, Event{Type: EventError, Snapshot: last})
			return
		}
		current := snapshotOf(rec)
		if current == last {
			continue
		}
		last = current
		if rec.Status.Terminal() {
			emit(ctx, events, Event{Type: EventDone, Snapshot: current})
			return
		}
		if !emit(ctx, events, Event{Type: EventUpdate, Snapshot: current}) {
			return
		}
	}
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func snapshotOf(rec *jobs.Record) Snapshot {
	return Snapshot{
		ID:          rec.ID,
		Status:      rec.Status,
		Progress:    rec.Progress,
		Error:       rec.Error,
		ChunksDone:  rec.ChunksDone,
		ChunksTotal: rec.ChunksTotal,
	}
}
