package junction

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/retry"
	"github.com/junction-dev/junction-go/internal/transport"
)

// DefaultBaseURL is the production Junction content API.
const DefaultBaseURL = "https://content-api.junction.dev"

// APIKeyEnv is the environment variable read when Config.APIKey is empty.
const APIKeyEnv = "JUNCTION_API_KEY"

// AuthScheme selects the header carrying the API key.
type AuthScheme = transport.AuthScheme

// Auth schemes.
const (
	// AuthAPIKey sends the key in an x-api-key header.
	AuthAPIKey = transport.AuthAPIKey

	// AuthBearer sends the key as "Authorization: Bearer <key>".
	AuthBearer = transport.AuthBearer
)

// RetryConfig controls retries of transient failures.
type RetryConfig = retry.Config

// DefaultRetryConfig returns 3 attempts with exponential backoff from 1s to
// 30s, ±20% jitter and a 2 minute budget per call.
func DefaultRetryConfig() RetryConfig { return retry.DefaultConfig() }

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates every request. When empty, JUNCTION_API_KEY is used.
	APIKey string

	// BaseURL of the API. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout bounds each attempt. The whole call is bounded by
	// Retry.MaxElapsed and the caller's context.
	Timeout time.Duration

	AuthScheme AuthScheme

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string

	// HTTPClient replaces the pooled client. Its Timeout is ignored.
	HTTPClient *http.Client

	Retry RetryConfig

	// Logger receives debug and warning events. The zero value logs nothing.
	Logger zerolog.Logger

	// Registerer receives the client's Prometheus collectors. Nil disables
	// metrics. A Registerer can serve only one Client.
	Registerer prometheus.Registerer

	// Redis enables the shared response cache and rate-limit state.
	Redis redis.UniversalClient

	// CacheStaleWindow keeps expired entries with validators for
	// conditional revalidation. Zero uses the cache default.
	CacheStaleWindow time.Duration

	// RateLimit paces requests client-side, in requests per second.
	// Zero disables the token bucket.
	RateLimit float64
	RateBurst int

	// PendingInterval is the wait between polls of search results that are
	// still being collected. A Retry-After header overrides it.
	PendingInterval time.Duration

	// PendingTimeout bounds how long one results page may stay pending.
	PendingTimeout time.Duration

	// BatchConcurrency bounds parallel requests of GetPlaces and GetBookings.
	BatchConcurrency int
}

// DefaultConfig returns a configuration for the production API. The API key
// is read from JUNCTION_API_KEY unless set.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		Timeout:          transport.DefaultTimeout,
		AuthScheme:       AuthAPIKey,
		UserAgent:        DefaultUserAgent,
		Retry:            retry.DefaultConfig(),
		Logger:           zerolog.Nop(),
		PendingInterval:  5 * time.Second,
		PendingTimeout:   2 * time.Minute,
		BatchConcurrency: 4,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.AuthScheme == "" {
		c.AuthScheme = d.AuthScheme
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	c.Retry = c.Retry.WithDefaults()
	if c.PendingInterval == 0 {
		c.PendingInterval = d.PendingInterval
	}
	if c.PendingTimeout == 0 {
		c.PendingTimeout = d.PendingTimeout
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Timeout < 0:
		return &apierr.ConfigurationError{Field: "timeout", Message: "must not be negative"}
	case c.RateLimit < 0:
		return &apierr.ConfigurationError{Field: "rate_limit", Message: "must not be negative"}
	case c.RateBurst < 0:
		return &apierr.ConfigurationError{Field: "rate_burst", Message: "must not be negative"}
	case c.PendingInterval < 0:
		return &apierr.ConfigurationError{Field: "pending_interval", Message: "must not be negative"}
	case c.PendingTimeout < 0:
		return &apierr.ConfigurationError{Field: "pending_timeout", Message: "must not be negative"}
	case c.BatchConcurrency < 0:
		return &apierr.ConfigurationError{Field: "batch_concurrency", Message: "must not be negative"}
	case c.CacheStaleWindow < 0:
		return &apierr.ConfigurationError{Field: "cache_stale_window", Message: "must not be negative"}
	}
	return c.Retry.Validate()
}
