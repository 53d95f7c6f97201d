// Package metrics provides the Prometheus collectors for the Junction client.
//
// Collectors are registered against a caller-supplied registerer so several
// clients, or a client and its tests, can coexist in one process. A nil
// *Collectors is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the default Prometheus registerer used by the binaries.
var Registry = prometheus.DefaultRegisterer

// Collectors holds every series the client records.
type Collectors struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec
	RetryBackoff       *prometheus.HistogramVec
	RetryExhausted     *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheErrors        *prometheus.CounterVec
	NotModified        prometheus.Counter
	RateLimitRemaining prometheus.Gauge
	RateLimitBlocks    prometheus.Counter
}

// New registers the client collectors with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "junction_requests_total",
			Help: "Total number of Junction API requests by operation and HTTP status",
		}, []string{"operation", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "junction_request_duration_seconds",
			Help:    "Junction API request duration by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "junction_errors_total",
			Help: "Total number of Junction API errors by kind",
		}, []string{"kind"}),

		RetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "junction_retries_total",
			Help: "Total number of retry attempts by reason",
		}, []string{"reason"}),

		RetryBackoff: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "junction_retry_backoff_seconds",
			Help:    "Backoff duration before a retry by reason",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"reason"}),

		RetryExhausted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "junction_retry_exhausted_total",
			Help: "Total number of calls that exhausted their retry budget by reason",
		}, []string{"reason"}),

		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "junction_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "junction_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "junction_cache_errors_total",
			Help: "Total number of response cache errors by operation",
		}, []string{"operation"}), // "get", "set", "delete"

		NotModified: f.NewCounter(prometheus.CounterOpts{
			Name: "junction_304_responses_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		}),

		RateLimitRemaining: f.NewGauge(prometheus.GaugeOpts{
			Name: "junction_rate_limit_remaining",
			Help: "Requests remaining in the current server rate-limit window",
		}),

		RateLimitBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "junction_rate_limit_blocks_total",
			Help: "Requests held back locally because the rate-limit window was exhausted",
		}),
	}
}

// ObserveRequest records one completed attempt.
func (c *Collectors) ObserveRequest(operation, status string, seconds float64) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(operation, status).Inc()
	c.RequestDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveError records an error of the given kind.
func (c *Collectors) ObserveError(kind string) {
	if c == nil || kind == "" {
		return
	}
	c.ErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveRetry records a scheduled retry and its backoff.
func (c *Collectors) ObserveRetry(reason string, seconds float64) {
	if c == nil {
		return
	}
	c.RetriesTotal.WithLabelValues(reason).Inc()
	c.RetryBackoff.WithLabelValues(reason).Observe(seconds)
}

// ObserveExhausted records a call that gave up retrying.
func (c *Collectors) ObserveExhausted(reason string) {
	if c == nil {
		return
	}
	c.RetryExhausted.WithLabelValues(reason).Inc()
}

// CacheHit records a response served from cache.
func (c *Collectors) CacheHit() {
	if c != nil {
		c.CacheHits.Inc()
	}
}

// CacheMiss records a cache lookup that found nothing usable.
func (c *Collectors) CacheMiss() {
	if c != nil {
		c.CacheMisses.Inc()
	}
}

// CacheError records a failed cache operation.
func (c *Collectors) CacheError(operation string) {
	if c != nil {
		c.CacheErrors.WithLabelValues(operation).Inc()
	}
}

// Revalidated records a 304 answered from cache.
func (c *Collectors) Revalidated() {
	if c != nil {
		c.NotModified.Inc()
	}
}

// SetRateLimitRemaining publishes the tracked server budget.
func (c *Collectors) SetRateLimitRemaining(n int) {
	if c != nil {
		c.RateLimitRemaining.Set(float64(n))
	}
}

// RateLimitBlocked records a request held back locally.
func (c *Collectors) RateLimitBlocked() {
	if c != nil {
		c.RateLimitBlocks.Inc()
	}
}

// Metrics Documentation
//
// Request Metrics (internal/transport):
//   - junction_requests_total{operation, status} (Counter)
//   - junction_request_duration_seconds{operation} (Histogram)
//   - junction_errors_total{kind} (Counter): configuration, validation, network,
//     rate_limited, server, client, decode, cancelled
//
// Retry Metrics (internal/retry):
//   - junction_retries_total{reason} (Counter)
//   - junction_retry_backoff_seconds{reason} (Histogram)
//   - junction_retry_exhausted_total{reason} (Counter)
//
// Cache Metrics (internal/transport caching sender):
//   - junction_cache_hits_total (Counter)
//   - junction_cache_misses_total (Counter)
//   - junction_cache_errors_total{operation} (Counter)
//   - junction_304_responses_total (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - junction_rate_limit_remaining (Gauge)
//   - junction_rate_limit_blocks_total (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(junction_cache_hits_total[5m])) /
//   (sum(rate(junction_cache_hits_total[5m])) + sum(rate(junction_cache_misses_total[5m])))
//
//   # Retry pressure
//   sum by (reason) (rate(junction_retries_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(junction_request_duration_seconds_bucket[5m]))
