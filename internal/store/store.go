package store

import (
	"context"
	"errors"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

var ErrNotFound = errors.New("job not found")

// Transient is the fast key/value store holding the live, authoritative job
// record while a job executes. Implementations: process memory (default) and
// Redis.
type Transient interface {
	Get(ctx context.Context, id string) (*jobs.Record, error)
	Put(ctx context.Context, rec *jobs.Record) error
	List(ctx context.Context) ([]*jobs.Record, error)
}

// Durable is the secondary persisted store mirrored asynchronously for
// cross-process visibility. It is allowed to lag the transient store.
// Implementations: SQLite (default) and Postgres.
type Durable interface {
	Get(ctx context.Context, id string) (*jobs.Record, error)
	Upsert(ctx context.Context, rec *jobs.Record) error
	List(ctx context.Context) ([]*jobs.Record, error)
	Close() error
}
