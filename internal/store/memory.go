package store

import (
	"context"
	"sort"
	"sync"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

// MemoryStore is the default transient store: a mutex-guarded map handing out
// clones only.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]*jobs.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]*jobs.Record)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*jobs.Record, error) {
	s.mu.RLock()
	rec, ok := s.recs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, rec *jobs.Record) error {
	s.mu.Lock()
	s.recs[rec.ID] = rec.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*jobs.Record, error) {
	s.mu.RLock()
	ret := make([]*jobs.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		ret = append(ret, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret, nil
}
