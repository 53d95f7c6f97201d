package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/internal/credential"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/pkg/cache"
	"github.com/junction-dev/junction-go/pkg/metrics"
)

// ResponseCache is the subset of *cache.Manager used by CachingSender.
type ResponseCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
	UpdateTTL(ctx context.Context, key cache.CacheKey, newExpires time.Time) error
}

// CachingSender serves fresh GET responses from a ResponseCache and
// revalidates stale ones with conditional requests. Cache failures are
// logged and never fail a call.
type CachingSender struct {
	next    Sender
	cache   ResponseCache
	logger  zerolog.Logger
	metrics *metrics.Collectors
	now     func() time.Time
}

// NewCachingSender wraps next with c.
func NewCachingSender(next Sender, c ResponseCache, logger zerolog.Logger, m *metrics.Collectors) *CachingSender {
	return &CachingSender{next: next, cache: c, logger: logger, metrics: m, now: time.Now}
}

// KeyFor returns the cache key for spec under the given credential.
func KeyFor(spec *request.Spec, cred credential.Credential) cache.CacheKey {
	return cache.CacheKey{
		Operation: string(spec.Operation),
		Path:      spec.Path,
		Query:     spec.RawQuery,
		Tenant:    cred.Fingerprint(),
	}
}

// Send implements Sender.
func (s *CachingSender) Send(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
	if spec.Method != http.MethodGet {
		return s.next.Send(ctx, spec, cred)
	}

	key := KeyFor(spec, cred)
	entry, err := s.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("operation", string(spec.Operation)).Msg("Cache lookup failed, fetching from API")
		entry = nil
	}

	if entry != nil && !entry.IsExpired(s.now()) {
		s.logger.Debug().Str("operation", string(spec.Operation)).Dur("ttl", entry.TTL(s.now())).Msg("Cache hit")
		return fromEntry(entry), nil
	}

	outgoing := spec
	if entry.Revalidatable() {
		for k, vs := range cache.ConditionalHeaders(entry) {
			outgoing = outgoing.WithHeader(k, vs[0])
		}
	}

	env, err := s.next.Send(ctx, outgoing, cred)
	if err != nil {
		return nil, err
	}

	if env.StatusCode == http.StatusNotModified && entry != nil {
		expires := cache.ParseExpires(env.Header, s.now())
		if err := s.cache.UpdateTTL(ctx, key, expires); err != nil {
			s.logger.Warn().Err(err).Str("operation", string(spec.Operation)).Msg("Cache refresh failed")
		}
		s.metrics.Revalidated()
		s.logger.Debug().Str("operation", string(spec.Operation)).Msg("Cache entry revalidated")
		entry.Expires = expires
		return fromEntry(entry), nil
	}

	if env.StatusCode == http.StatusOK && cache.Cacheable(env.Header) {
		fresh := cache.NewEntry(env.StatusCode, env.Header, env.Body, s.now())
		if err := s.cache.Set(ctx, key, fresh); err != nil {
			s.logger.Warn().Err(err).Str("operation", string(spec.Operation)).Msg("Cache store failed")
		}
	}
	return env, nil
}

func fromEntry(entry *cache.CacheEntry) *Envelope {
	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &Envelope{
		StatusCode: status,
		Header:     entry.Headers.Clone(),
		Body:       entry.Data,
		Cached:     true,
	}
}
