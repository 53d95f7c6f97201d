package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/junction-dev/junction-go/pkg/metrics"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultStaleWindow is how long a stale, revalidatable entry is kept.
const DefaultStaleWindow = 10 * time.Minute

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis       redis.UniversalClient
	metrics     *metrics.Collectors
	staleWindow time.Duration
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records hits, misses and errors on c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithStaleWindow sets how long stale entries with validators are kept for
// revalidation. Zero disables revalidation.
func WithStaleWindow(d time.Duration) Option {
	return func(m *Manager) { m.staleWindow = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient redis.UniversalClient, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{
		redis:       redisClient,
		staleWindow: DefaultStaleWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get retrieves a cache entry by key. Stale entries that can be revalidated
// are returned as well; callers check IsExpired. Returns ErrCacheMiss if
// nothing usable is stored.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			m.metrics.CacheMiss()
			return nil, ErrCacheMiss
		}
		m.metrics.CacheError("get")
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.metrics.CacheError("get")
		_ = m.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	now := m.now()
	if entry.IsExpired(now) && !(entry.Revalidatable() && now.Before(entry.Expires.Add(m.staleWindow))) {
		_ = m.Delete(ctx, key)
		m.metrics.CacheMiss()
		return nil, ErrCacheMiss
	}

	if !entry.IsExpired(now) {
		m.metrics.CacheHit()
	}
	return &entry, nil
}

// Set stores a cache entry. Redis expiry is the entry's remaining freshness
// plus the stale window when the entry carries validators.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL(m.now())
	if entry.Revalidatable() {
		ttl += m.staleWindow
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		m.metrics.CacheError("set")
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		m.metrics.CacheError("set")
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		m.metrics.CacheError("delete")
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves an existing entry's expiry, typically after a 304.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}
