// Package retry decides whether failed attempts are repeated and how long
// to wait between them.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/transport"
	"github.com/junction-dev/junction-go/pkg/metrics"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay. Server Retry-After hints are not capped.
	MaxBackoff time.Duration

	// Multiplier is the growth factor for exponential backoff.
	Multiplier float64

	// Jitter randomises each delay by ±Jitter (0.2 means ±20%).
	Jitter float64

	// MaxElapsed is the wall-clock budget across all attempts of one call.
	// Zero means unlimited.
	MaxElapsed time.Duration

	// Seed fixes the jitter sequence when non-zero.
	Seed int64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
		MaxElapsed:     2 * time.Minute,
	}
}

// WithDefaults fills unset fields from DefaultConfig. A zero Config takes
// every default. Otherwise Jitter and MaxElapsed keep their zero value,
// which means no jitter and no budget.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = max(d.MaxBackoff, c.InitialBackoff)
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return &apierr.ConfigurationError{Field: "retry.max_attempts", Message: "must be at least 1"}
	case c.InitialBackoff < 0:
		return &apierr.ConfigurationError{Field: "retry.initial_backoff", Message: "must not be negative"}
	case c.MaxBackoff < c.InitialBackoff:
		return &apierr.ConfigurationError{Field: "retry.max_backoff", Message: "must be >= initial_backoff"}
	case c.Multiplier < 1:
		return &apierr.ConfigurationError{Field: "retry.multiplier", Message: "must be >= 1"}
	case c.Jitter < 0 || c.Jitter >= 1:
		return &apierr.ConfigurationError{Field: "retry.jitter", Message: "must be in [0, 1)"}
	case c.MaxElapsed < 0:
		return &apierr.ConfigurationError{Field: "retry.max_elapsed", Message: "must not be negative"}
	}
	return nil
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Attempt performs one try of a logical call.
type Attempt func(ctx context.Context) (*transport.Envelope, error)

// Result is the outcome of Execute.
type Result struct {
	// Envelope is the last response received, nil when the last attempt
	// produced none.
	Envelope *transport.Envelope
	Attempts int
	Elapsed  time.Duration
}

// Policy executes attempts under a Config. It is safe for concurrent use.
type Policy struct {
	cfg     Config
	clock   Clock
	logger  zerolog.Logger
	metrics *metrics.Collectors

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock injects the time source.
func WithClock(c Clock) Option { return func(p *Policy) { p.clock = c } }

// WithLogger sets the logger for retry events.
func WithLogger(l zerolog.Logger) Option { return func(p *Policy) { p.logger = l } }

// WithMetrics records retries on c.
func WithMetrics(c *metrics.Collectors) Option { return func(p *Policy) { p.metrics = c } }

// New validates cfg and returns a Policy.
func New(cfg Config, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := &Policy{
		cfg:    cfg,
		clock:  SystemClock,
		logger: zerolog.Nop(),
		rnd:    rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the policy's configuration.
func (p *Policy) Config() Config { return p.cfg }

// Execute runs attempt until it succeeds, fails permanently, or the attempt
// or time budget is spent.
//
// A non-nil error is returned for transport-level failures (the last one
// after exhaustion) and cancellation. HTTP failures return a nil error and
// the last envelope, which the caller decodes into a typed error. With
// MaxElapsed set, each attempt runs under the remaining budget; an attempt
// cut short by it ends the call with a NetworkError.
func (p *Policy) Execute(ctx context.Context, meta apierr.Meta, attempt Attempt) (Result, error) {
	start := p.clock.Now()
	var res Result

	for n := 1; ; n++ {
		if err := apierr.Cancelled(ctx, meta); err != nil {
			res.Elapsed = p.clock.Now().Sub(start)
			return res, apierr.WithAttempts(err, n-1)
		}

		env, overBudget, err := p.attempt(ctx, meta, start, attempt)
		res = Result{Envelope: env, Attempts: n, Elapsed: p.clock.Now().Sub(start)}
		if overBudget {
			p.exhausted(meta, string(apierr.KindNetwork), n)
			return res, apierr.WithAttempts(err, n)
		}

		reason, hint, retryable := p.classify(env, err)
		if !retryable {
			return res, apierr.WithAttempts(err, n)
		}

		if n >= p.cfg.MaxAttempts {
			p.exhausted(meta, reason, n)
			return res, apierr.WithAttempts(err, n)
		}

		delay := p.Backoff(n)
		if hint >= 0 {
			delay = hint
		}
		if p.cfg.MaxElapsed > 0 && res.Elapsed+delay > p.cfg.MaxElapsed {
			p.exhausted(meta, reason, n)
			return res, apierr.WithAttempts(err, n)
		}

		p.metrics.ObserveRetry(reason, delay.Seconds())
		p.logger.Warn().
			Str("operation", meta.Operation).
			Str("request_id", meta.RequestID).
			Str("reason", reason).
			Int("attempt", n).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := p.clock.Sleep(ctx, delay); err != nil {
			res.Elapsed = p.clock.Now().Sub(start)
			return Result{Attempts: n, Elapsed: res.Elapsed}, &apierr.CancelledError{Meta: withAttempts(meta, n), Err: ctxErr(ctx, err)}
		}
	}
}

// attempt runs one try under the remaining elapsed budget. overBudget is
// set when the budget deadline, not the caller, ended the try.
func (p *Policy) attempt(ctx context.Context, meta apierr.Meta, start time.Time, try Attempt) (env *transport.Envelope, overBudget bool, err error) {
	if p.cfg.MaxElapsed <= 0 {
		env, err = try(ctx)
		return env, false, err
	}

	remaining := p.cfg.MaxElapsed - p.clock.Now().Sub(start)
	budgetCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	env, err = try(budgetCtx)
	if err == nil || ctx.Err() != nil || !errors.Is(budgetCtx.Err(), context.DeadlineExceeded) {
		return env, false, err
	}
	var nerr *apierr.NetworkError
	if errors.As(err, &nerr) {
		return nil, true, err
	}
	return nil, true, &apierr.NetworkError{
		Meta: meta,
		Err:  fmt.Errorf("retry budget of %s exhausted: %w", p.cfg.MaxElapsed, context.DeadlineExceeded),
	}
}

// Backoff returns the jittered delay before retry n (n >= 1), capped at
// MaxBackoff.
func (p *Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	base := float64(p.cfg.InitialBackoff) * math.Pow(p.cfg.Multiplier, float64(n-1))

	if p.cfg.Jitter > 0 {
		p.mu.Lock()
		r := p.rnd.Float64()
		p.mu.Unlock()
		base *= 1 - p.cfg.Jitter + 2*p.cfg.Jitter*r
	}
	if base > float64(p.cfg.MaxBackoff) {
		base = float64(p.cfg.MaxBackoff)
	}
	return time.Duration(base)
}

// classify returns the retry reason, a server delay hint (-1 when absent),
// and whether the outcome is retryable.
func (p *Policy) classify(env *transport.Envelope, err error) (string, time.Duration, bool) {
	if err != nil {
		if !apierr.Retryable(err) {
			return "", -1, false
		}
		if d, ok := apierr.RetryAfter(err); ok {
			return string(apierr.KindOf(err)), d, true
		}
		return string(apierr.KindOf(err)), -1, true
	}
	if env == nil {
		return "", -1, false
	}

	kind := apierr.KindOfStatus(env.StatusCode)
	switch kind {
	case apierr.KindRateLimited, apierr.KindServer:
		if d, ok := transport.ParseRetryAfter(env.Header, p.clock.Now()); ok {
			return string(kind), d, true
		}
		return string(kind), -1, true
	}
	return "", -1, false
}

func (p *Policy) exhausted(meta apierr.Meta, reason string, attempts int) {
	p.metrics.ObserveExhausted(reason)
	p.logger.Warn().
		Str("operation", meta.Operation).
		Str("request_id", meta.RequestID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("Retry attempts exhausted")
}

func withAttempts(m apierr.Meta, n int) apierr.Meta {
	m.Attempts = n
	return m
}

func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("sleep interrupted: %w", err)
}
