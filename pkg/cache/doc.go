// Package cache provides a Redis-backed response cache for the Junction
// client.
//
// Only successful GET responses are cached: place lookups, place searches,
// booking reads and completed offer pages. Entries are partitioned per API
// key by the credential fingerprint, so two tenants sharing one Redis never
// see each other's data.
//
// Features:
//
//   - Freshness from Cache-Control max-age, falling back to Expires and then
//     to DefaultTTL; no-store responses are never cached
//   - ETag (If-None-Match) and Last-Modified (If-Modified-Since) revalidation
//     of stale entries, kept in Redis for a configurable stale window
//   - Deterministic cache keys
//   - Prometheus metrics through pkg/metrics
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, cache.WithMetrics(collectors))
//
//	key := cache.CacheKey{
//		Operation: "places.get",
//		Path:      "/places/place_01j44f6jw3erbr4rgna3xdtvxn",
//		Tenant:    cred.Fingerprint(),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// Most callers never use the Manager directly: setting junction.Config.Redis
// wraps the client's transport in a caching sender.
package cache
