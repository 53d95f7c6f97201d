package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/pkg/metrics"
)

// Response headers read by the Tracker.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// DefaultMaxStateAge is how long a recorded window may gate requests. Older
// state, such as one left in Redis by a process that stopped, is ignored.
const DefaultMaxStateAge = time.Hour

// resetEpochThreshold separates "seconds until reset" from a Unix
// timestamp in X-RateLimit-Reset.
const resetEpochThreshold = 1_000_000_000

// Tracker records the server's rate-limit window and gates requests once it
// is exhausted.
type Tracker struct {
	store   Store
	logger  zerolog.Logger
	metrics *metrics.Collectors
	maxAge  time.Duration
	now     func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerMetrics publishes the remaining budget and blocks on c.
func WithTrackerMetrics(c *metrics.Collectors) TrackerOption {
	return func(t *Tracker) { t.metrics = c }
}

// WithTrackerMaxAge overrides DefaultMaxStateAge.
func WithTrackerMaxAge(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.maxAge = d
		}
	}
}

// WithTrackerClock overrides the time source.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker over store. A nil store uses a MemoryStore.
func NewTracker(store Store, logger zerolog.Logger, opts ...TrackerOption) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	t := &Tracker{store: store, logger: logger, maxAge: DefaultMaxStateAge, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetState returns the tracked state, or ok=false before any response has
// reported one.
func (t *Tracker) GetState(ctx context.Context) (State, bool, error) {
	s, ok, err := t.store.Load(ctx)
	if err != nil {
		return State{}, false, fmt.Errorf("load rate limit state: %w", err)
	}
	return s, ok, nil
}

// UpdateFromHeaders records the window reported by a response. Responses
// without rate-limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	now := t.now()
	state := State{Remaining: remain, LastUpdate: now}

	if v := headers.Get(HeaderLimit); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			state.Limit = limit
		}
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}
	if reset >= resetEpochThreshold {
		state.ResetAt = time.Unix(reset, 0)
	} else {
		state.ResetAt = now.Add(time.Duration(reset) * time.Second)
	}

	return t.save(ctx, state)
}

// RecordThrottled marks the window exhausted for retryAfter, used when a
// 429 arrives without rate-limit headers.
func (t *Tracker) RecordThrottled(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		return nil
	}
	now := t.now()
	return t.save(ctx, State{Remaining: 0, ResetAt: now.Add(retryAfter), LastUpdate: now})
}

// Allow reports whether a request may be sent now. When it may not, wait is
// the time until the window resets. State older than the tracker's max age
// never holds a request back.
func (t *Tracker) Allow(ctx context.Context) (wait time.Duration, allowed bool, err error) {
	state, ok, err := t.GetState(ctx)
	if err != nil {
		return 0, false, err
	}
	now := t.now()
	if !ok || !state.Exhausted(now) {
		return 0, true, nil
	}
	if state.IsStale(now, t.maxAge) {
		t.logger.Debug().
			Time("last_update", state.LastUpdate).
			Msg("Discarding stale rate limit state")
		if err := t.store.Clear(ctx); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to clear stale rate limit state")
		}
		return 0, true, nil
	}

	wait = state.TimeUntilReset(now)
	t.metrics.RateLimitBlocked()
	t.logger.Warn().
		Int("remaining", state.Remaining).
		Dur("wait_duration", wait).
		Msg("Junction rate limit exhausted - holding request")
	return wait, false, nil
}

func (t *Tracker) save(ctx context.Context, state State) error {
	if err := t.store.Save(ctx, state); err != nil {
		return err
	}
	t.metrics.SetRateLimitRemaining(state.Remaining)

	event := t.logger.Debug()
	msg := "Junction rate limit state updated"
	if state.NearLimit() {
		event = t.logger.Warn()
		msg = "Junction rate limit nearly exhausted"
	}
	event.
		Int("remaining", state.Remaining).
		Int("limit", state.Limit).
		Time("reset_at", state.ResetAt).
		Msg(msg)
	return nil
}
