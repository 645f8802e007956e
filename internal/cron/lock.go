package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// defaultLockTTL outlives any sane cron cycle so a crashed worker cannot
// wedge the schedule for more than a day.
const defaultLockTTL = 25 * time.Hour

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock serialises cron cycles across worker replicas. Only the
// replica that acquired the lock may release it.
type RedisLock struct {
	store redisStore
	key   string
	ttl   time.Duration
	owner string
}

// NewRedisLock builds a distributed lock stored at key. A non-positive ttl
// falls back to defaultLockTTL.
func NewRedisLock(store redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if key == "" {
		return nil, fmt.Errorf("lock key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{
		store: store,
		key:   key,
		ttl:   ttl,
		owner: uuid.NewString(),
	}, nil
}

// Acquire attempts to take the lock. It returns false when another owner
// already holds it.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.store.SetNX(ctx, l.key, l.owner, l.ttl)
}

// Release frees the lock if this instance still owns it. Releasing an
// expired or foreign lock is a no-op.
func (l *RedisLock) Release(ctx context.Context) error {
	value, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if value != l.owner {
		return nil
	}
	return l.store.Del(ctx, l.key)
}
