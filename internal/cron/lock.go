package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 2 * time.Hour

// Lock coordinates exclusive runs of one job across processes.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockProvider hands out the lock guarding a named job.
type LockProvider interface {
	For(job string) Lock
}

// RunState remembers the last occurrence each job ran for, so a restarted
// process can tell which occurrences it missed.
type RunState interface {
	LastRun(ctx context.Context, job string) (time.Time, bool, error)
	MarkRun(ctx context.Context, job string, scheduledAt time.Time) error
}

// redisStore defines the operations used by the Redis lock and run state.
type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock using Redis SETNX + TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this holder still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.client.DeleteIfValue(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// RedisLocks builds one RedisLock per job name.
type RedisLocks struct {
	client redisStore
	keyFor func(job string) string
	ttl    time.Duration
}

func NewRedisLocks(client redisStore, keyFor func(job string) string, ttl time.Duration) (*RedisLocks, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if keyFor == nil {
		return nil, errors.New("lock key builder required")
	}
	return &RedisLocks{client: client, keyFor: keyFor, ttl: ttl}, nil
}

func (p *RedisLocks) For(job string) Lock {
	lock, err := NewRedisLock(p.client, p.keyFor(job), p.ttl)
	if err != nil {
		return failedLock{err: err}
	}
	return lock
}

type failedLock struct{ err error }

func (f failedLock) Acquire(context.Context) (bool, error) { return false, f.err }
func (f failedLock) Release(context.Context) error         { return nil }

// RedisRunState stores last-run timestamps as RFC3339 strings.
type RedisRunState struct {
	client redisStore
	keyFor func(job string) string
}

func NewRedisRunState(client redisStore, keyFor func(job string) string) (*RedisRunState, error) {
	if client == nil {
		return nil, errors.New("redis client required for run state")
	}
	if keyFor == nil {
		return nil, errors.New("run state key builder required")
	}
	return &RedisRunState{client: client, keyFor: keyFor}, nil
}

func (s *RedisRunState) LastRun(ctx context.Context, job string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.keyFor(job))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read last run: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last run %q: %w", raw, err)
	}
	return at, true, nil
}

func (s *RedisRunState) MarkRun(ctx context.Context, job string, scheduledAt time.Time) error {
	if err := s.client.Set(ctx, s.keyFor(job), scheduledAt.UTC().Format(time.RFC3339Nano), 0); err != nil {
		return fmt.Errorf("store last run: %w", err)
	}
	return nil
}
