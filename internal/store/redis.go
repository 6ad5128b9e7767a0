package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

const (
	redisKeyPrefix = "readitdeep:job:"
	redisIndexKey  = "readitdeep:jobs"
)

// RedisStore is a Transient implementation backed by Redis, for deployments
// where live job records should survive a process restart or be visible to a
// sidecar. Records are stored as JSON values with a set index for listing.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*jobs.Record, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rec jobs.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *jobs.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", rec.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+rec.ID, raw, 0)
	pipe.SAdd(ctx, redisIndexKey, rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*jobs.Record, error) {
	ids, err := s.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list ids: %w", err)
	}
	ret := make([]*jobs.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// index entry outlived the value; drop it
				_ = s.rdb.SRem(ctx, redisIndexKey, id).Err()
				continue
			}
			return nil, err
		}
		ret = append(ret, rec)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret, nil
}
