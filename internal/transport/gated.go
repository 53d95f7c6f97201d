package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/credential"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/pkg/ratelimit"
)

// GatedSender paces requests with a token bucket and holds them back while
// the tracked server window is exhausted. Either gate may be nil.
type GatedSender struct {
	next    Sender
	limiter *ratelimit.Limiter
	tracker *ratelimit.Tracker
	logger  zerolog.Logger
	now     func() time.Time
}

// NewGatedSender wraps next.
func NewGatedSender(next Sender, limiter *ratelimit.Limiter, tracker *ratelimit.Tracker, logger zerolog.Logger) *GatedSender {
	return &GatedSender{next: next, limiter: limiter, tracker: tracker, logger: logger, now: time.Now}
}

// Send implements Sender. A held-back request fails with a local
// RateLimitedError whose RetryAfter is the time until the window resets.
func (g *GatedSender) Send(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
	meta := apierr.Meta{Operation: string(spec.Operation), RequestID: spec.Header.Get("X-Request-ID")}

	if err := apierr.Cancelled(ctx, meta); err != nil {
		return nil, err
	}
	if !g.limiter.Allow() {
		g.logger.Debug().Str("operation", string(spec.Operation)).Msg("Pacing request")
		if err := g.limiter.Wait(ctx); err != nil {
			if cerr := apierr.Cancelled(ctx, meta); cerr != nil {
				return nil, cerr
			}
			// The bucket cannot serve the request before the deadline.
			return nil, &apierr.RateLimitedError{Meta: meta, Local: true}
		}
	}

	if g.tracker != nil {
		wait, allowed, err := g.tracker.Allow(ctx)
		switch {
		case err != nil:
			g.logger.Warn().Err(err).Msg("Rate limit state unavailable, sending request")
		case !allowed:
			return nil, &apierr.RateLimitedError{Meta: meta, RetryAfter: wait, Local: true}
		}
	}

	env, err := g.next.Send(ctx, spec, cred)
	if err != nil || g.tracker == nil {
		return env, err
	}

	if err := g.tracker.UpdateFromHeaders(ctx, env.Header); err != nil {
		g.logger.Debug().Err(err).Msg("Ignoring malformed rate limit headers")
	}
	if env.StatusCode == http.StatusTooManyRequests && env.Header.Get(ratelimit.HeaderRemaining) == "" {
		if d, ok := ParseRetryAfter(env.Header, g.now()); ok {
			if err := g.tracker.RecordThrottled(ctx, d); err != nil {
				g.logger.Warn().Err(err).Msg("Failed to record rate limit state")
			}
		}
	}
	return env, nil
}
