package junction

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/credential"
	"github.com/junction-dev/junction-go/internal/decode"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/internal/retry"
	"github.com/junction-dev/junction-go/internal/transport"
	"github.com/junction-dev/junction-go/pkg/cache"
	"github.com/junction-dev/junction-go/pkg/logging"
	"github.com/junction-dev/junction-go/pkg/metrics"
	"github.com/junction-dev/junction-go/pkg/ratelimit"
)

// Headers attached to every logical call.
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Client is the Junction API client. It is safe for concurrent use; each
// method call is independent and may run in parallel with others.
type Client struct {
	cfg       Config
	cred      credential.Credential
	builder   *request.Builder
	transport *transport.Transport
	sender    transport.Sender
	policy    *retry.Policy
	tracker   *ratelimit.Tracker
	metrics   *metrics.Collectors
	logger    zerolog.Logger
	sleep     func(context.Context, time.Duration) error
	closed    atomic.Bool
}

// New creates a Client. The API key is resolved once, from cfg.APIKey or
// the JUNCTION_API_KEY environment variable.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cred, err := credential.Resolve(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = ""

	builder, err := request.NewBuilder(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	logger := logging.Component(cfg.Logger, logging.ComponentClient)

	var collectors *metrics.Collectors
	if cfg.Registerer != nil {
		collectors = metrics.New(cfg.Registerer)
	}

	tr, err := transport.New(transport.Config{
		BaseURL:    builder.BaseURL(),
		Timeout:    cfg.Timeout,
		AuthScheme: cfg.AuthScheme,
		UserAgent:  cfg.UserAgent,
		HTTPClient: cfg.HTTPClient,
		Logger:     logging.Component(cfg.Logger, logging.ComponentTransport),
		Metrics:    collectors,
	})
	if err != nil {
		return nil, err
	}

	var store ratelimit.Store
	if cfg.Redis != nil {
		store = ratelimit.NewRedisStore(cfg.Redis, cred.Fingerprint())
	}
	rlLogger := logging.Component(cfg.Logger, logging.ComponentRateLimit)
	tracker := ratelimit.NewTracker(store, rlLogger, ratelimit.WithTrackerMetrics(collectors))
	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst)

	var sender transport.Sender = transport.NewGatedSender(tr, limiter, tracker, rlLogger)
	if cfg.Redis != nil {
		opts := []cache.Option{cache.WithMetrics(collectors)}
		if cfg.CacheStaleWindow > 0 {
			opts = append(opts, cache.WithStaleWindow(cfg.CacheStaleWindow))
		}
		cacheLogger := logging.Component(cfg.Logger, logging.ComponentCache)
		sender = transport.NewCachingSender(sender, cache.NewManager(cfg.Redis, opts...), cacheLogger, collectors)
	}

	policy, err := retry.New(cfg.Retry,
		retry.WithLogger(logging.Component(cfg.Logger, logging.ComponentRetry)),
		retry.WithMetrics(collectors))
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("base_url", builder.BaseURL().String()).
		Str("credential", cred.String()).
		Bool("cache", cfg.Redis != nil).
		Float64("rate_limit", cfg.RateLimit).
		Msg("Junction client created")

	return &Client{
		cfg:       cfg,
		cred:      cred,
		builder:   builder,
		transport: tr,
		sender:    sender,
		policy:    policy,
		tracker:   tracker,
		metrics:   collectors,
		logger:    logger,
		sleep:     retry.SystemClock.Sleep,
	}, nil
}

// Close releases idle connections. Calls made after Close fail with
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.transport.Close()
}

// RateLimitState returns the last rate-limit window reported by the API.
// ok is false until a response carried rate-limit headers.
func (c *Client) RateLimitState(ctx context.Context) (state ratelimit.State, ok bool, err error) {
	return c.tracker.GetState(ctx)
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	idempotencyKey string
}

// WithIdempotencyKey sets the Idempotency-Key of a write. Without it a
// fresh key is generated per call and reused across its retries.
func WithIdempotencyKey(key string) CallOption {
	return func(o *callOptions) { o.idempotencyKey = key }
}

func idempotent(spec *request.Spec, opts []CallOption) *request.Spec {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.idempotencyKey == "" {
		o.idempotencyKey = uuid.NewString()
	}
	return spec.WithHeader(HeaderIdempotencyKey, o.idempotencyKey)
}

// do builds, sends and decodes one call.
func (c *Client) do(ctx context.Context, op request.OperationID, params request.Params, body any, dst any, opts ...CallOption) error {
	spec, err := c.builder.Build(op, params, body)
	if err != nil {
		return c.fail(err)
	}
	if !spec.Idempotent() {
		spec = idempotent(spec, opts)
	}
	env, meta, err := c.execute(ctx, spec)
	if err != nil {
		return err
	}
	return c.fail(decode.Decode(env, meta, dst))
}

// execute runs spec through the retry policy. HTTP failures come back as
// the last envelope; transport failures and cancellation as errors.
func (c *Client) execute(ctx context.Context, spec *request.Spec) (*transport.Envelope, apierr.Meta, error) {
	meta := apierr.Meta{Operation: string(spec.Operation)}
	if c.closed.Load() {
		return nil, meta, ErrClientClosed
	}

	meta.RequestID = uuid.NewString()
	spec = spec.WithHeader(HeaderRequestID, meta.RequestID)

	res, err := c.policy.Execute(ctx, meta, func(ctx context.Context) (*transport.Envelope, error) {
		return c.sender.Send(ctx, spec, c.cred)
	})
	meta.Attempts = res.Attempts
	if err != nil {
		return nil, meta, c.fail(apierr.WithRequestID(err, meta.RequestID))
	}
	return res.Envelope, meta, nil
}

func (c *Client) fail(err error) error {
	if err != nil {
		if kind := apierr.KindOf(err); kind != "" {
			c.metrics.ObserveError(string(kind))
		}
	}
	return err
}
