// Package ratelimit implements client-side request pacing and tracking of the
// server's rate-limit window. It reads the X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset headers and, once the window
// is spent, holds requests back locally until it resets.
package ratelimit

import (
	"time"
)

// Redis key suffixes for shared state. The full key is
// junction:rate_limit:<tenant>:<suffix>.
const (
	RedisKeyRemaining  = "remaining"
	RedisKeyLimit      = "limit"
	RedisKeyResetAt    = "reset_at"
	RedisKeyLastUpdate = "last_update"
)

// ThresholdWarning is the remaining budget below which updates are logged
// at warn level.
const ThresholdWarning = 5

// State is the last known server rate-limit window.
type State struct {
	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// Limit is the window size, when the server reports it.
	Limit int `json:"limit,omitempty"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale reports whether the state is older than maxAge at now.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// Exhausted reports whether no requests remain and the window has not yet
// reset at now.
func (s *State) Exhausted(now time.Time) bool {
	return s.Remaining <= 0 && now.Before(s.ResetAt)
}

// NearLimit reports whether the budget is below ThresholdWarning.
func (s *State) NearLimit() bool {
	return s.Remaining < ThresholdWarning
}

// TimeUntilReset returns the time until the window resets, or 0 if it
// already has.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
