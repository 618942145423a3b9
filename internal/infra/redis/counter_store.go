package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CounterStore exposes the atomic primitives of a shared Redis instance.
// Every operation is a single server-side command.
type CounterStore struct {
	rdb goredis.UniversalClient
}

func NewCounterStore(rdb goredis.UniversalClient) *CounterStore {
	return &CounterStore{rdb: rdb}
}

func (s *CounterStore) Increment(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *CounterStore) Decrement(ctx context.Context, key string) (int64, error) {
	return s.rdb.Decr(ctx, key).Result()
}

func (s *CounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *CounterStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
