package store

import (
	"context"
	"sync"
	"time"

	"github.com/oMygpt/readitdeep/pkg/log"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

// Dual is the store handed to the orchestrators and the progress publisher.
// The transient store is the single mutable source of truth while a job runs;
// every mutation is mirrored into the durable store by a fire-and-forget
// goroutine, never on the hot path. Durable readers may observe a bounded
// staleness window.
type Dual struct {
	transient Transient
	durable   Durable

	// serializes read-merge-write cycles so advisory siblings touching
	// disjoint fields cannot lose each other's updates
	mu sync.Mutex

	mirrorTimeout time.Duration
	wg            sync.WaitGroup
}

func NewDual(transient Transient, durable Durable) *Dual {
	return &Dual{
		transient:     transient,
		durable:       durable,
		mirrorTimeout: 10 * time.Second,
	}
}

// Create persists a brand-new record.
func (s *Dual) Create(ctx context.Context, rec *jobs.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if err := s.transient.Put(ctx, rec); err != nil {
		return err
	}
	s.mirror(rec.Clone())
	return nil
}

// Get returns the live record, falling back to the durable store for records
// owned by another process (or a previous life of this one). A durable hit
// re-primes the transient store.
func (s *Dual) Get(ctx context.Context, id string) (*jobs.Record, error) {
	rec, err := s.transient.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	rec, err = s.durable.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if perr := s.transient.Put(ctx, rec); perr != nil {
		log.Warn("Failed to re-prime transient store for job %s: %v", id, perr)
	}
	return rec.Clone(), nil
}

func (s *Dual) List(ctx context.Context) ([]*jobs.Record, error) {
	return s.transient.List(ctx)
}

// Update runs one read-merge-write cycle. The mutator receives a clone and
// must only touch the fields its stage owns. Progress is clamped to be
// non-decreasing unless the status itself moved (an explicit re-run resets
// the scale legitimately).
func (s *Dual) Update(ctx context.Context, id string, mutate func(*jobs.Record)) (*jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transient.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	prevStatus := rec.Status
	prevProgress := rec.Progress
	mutate(rec)
	if rec.Status == prevStatus && rec.Progress < prevProgress {
		rec.Progress = prevProgress
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := s.transient.Put(ctx, rec); err != nil {
		return nil, err
	}
	s.mirror(rec.Clone())
	return rec.Clone(), nil
}

// mirror pushes one record into the durable store without blocking the
// caller. Failures are logged; the cron resync sweep bounds how long a
// dropped write can stay invisible.
func (s *Dual) mirror(rec *jobs.Record) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.mirrorTimeout)
		defer cancel()
		if err := s.durable.Upsert(ctx, rec); err != nil {
			log.Error("Failed to mirror job %s to durable store: %v", rec.ID, err)
		}
	}()
}

// Sync upserts every transient record into the durable store. Wired to a cron
// schedule at startup.
func (s *Dual) Sync(ctx context.Context) error {
	recs, err := s.transient.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := s.durable.Upsert(ctx, rec); err != nil {
			log.Error("Resync of job %s failed: %v", rec.ID, err)
		}
	}
	return nil
}

// Wait blocks until all in-flight mirror writes have finished. Test hook and
// shutdown aid.
func (s *Dual) Wait() {
	s.wg.Wait()
}
