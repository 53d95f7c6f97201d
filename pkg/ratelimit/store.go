package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the tracked State.
type Store interface {
	// Load returns the stored state; ok is false when nothing is stored.
	Load(ctx context.Context) (state State, ok bool, err error)
	Save(ctx context.Context, state State) error
	// Clear removes the stored state.
	Clear(ctx context.Context) error
}

// MemoryStore keeps state in process. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	state State
	ok    bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.ok, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.ok = s, true
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.ok = State{}, false
	return nil
}

// RedisStore shares state between processes using the same API key.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store whose keys are scoped to tenant, usually
// the credential fingerprint.
func NewRedisStore(client redis.UniversalClient, tenant string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if tenant == "" {
		tenant = "default"
	}
	return &RedisStore{redis: client, prefix: "junction:rate_limit:" + tenant + ":"}
}

func (r *RedisStore) key(suffix string) string { return r.prefix + suffix }

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (State, bool, error) {
	vals, err := r.redis.MGet(ctx,
		r.key(RedisKeyRemaining),
		r.key(RedisKeyLimit),
		r.key(RedisKeyResetAt),
		r.key(RedisKeyLastUpdate),
	).Result()
	if err != nil {
		return State{}, false, fmt.Errorf("redis mget: %w", err)
	}
	if vals[0] == nil {
		return State{}, false, nil
	}

	var s State
	var ints [4]int64
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return State{}, false, fmt.Errorf("unexpected redis value type %T", v)
		}
		if _, err := fmt.Sscan(str, &ints[i]); err != nil {
			return State{}, false, fmt.Errorf("parse rate limit state: %w", err)
		}
	}
	s.Remaining = int(ints[0])
	s.Limit = int(ints[1])
	s.ResetAt = time.UnixMilli(ints[2])
	s.LastUpdate = time.UnixMilli(ints[3])
	return s, true, nil
}

// Save implements Store. Keys expire shortly after the window resets.
func (r *RedisStore) Save(ctx context.Context, s State) error {
	ttl := time.Until(s.ResetAt) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, r.key(RedisKeyRemaining), s.Remaining, ttl)
	pipe.Set(ctx, r.key(RedisKeyLimit), s.Limit, ttl)
	pipe.Set(ctx, r.key(RedisKeyResetAt), s.ResetAt.UnixMilli(), ttl)
	pipe.Set(ctx, r.key(RedisKeyLastUpdate), s.LastUpdate.UnixMilli(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context) error {
	err := r.redis.Del(ctx,
		r.key(RedisKeyRemaining),
		r.key(RedisKeyLimit),
		r.key(RedisKeyResetAt),
		r.key(RedisKeyLastUpdate),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
