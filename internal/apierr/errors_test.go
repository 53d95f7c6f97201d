package apierr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "network error retries", err: &NetworkError{Err: errors.New("refused")}, expected: true},
		{name: "server error retries", err: &ServerError{StatusCode: 503}, expected: true},
		{name: "rate limit retries", err: &RateLimitedError{StatusCode: 429}, expected: true},
		{name: "client error does not retry", err: &ClientError{StatusCode: 400}, expected: false},
		{name: "decode error does not retry", err: &DecodeError{StatusCode: 200}, expected: false},
		{name: "cancellation does not retry", err: &CancelledError{Err: context.Canceled}, expected: false},
		{name: "validation does not retry", err: &ValidationError{Param: "x"}, expected: false},
		{name: "foreign error does not retry", err: errors.New("boom"), expected: false},
		{name: "nil does not retry", err: nil, expected: false},
		{name: "wrapped network error retries", err: fmt.Errorf("ctx: %w", &NetworkError{}), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.expected {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestKindOfStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected Kind
	}{
		{200, ""},
		{202, ""},
		{304, ""},
		{400, KindClient},
		{401, KindClient},
		{404, KindClient},
		{429, KindRateLimited},
		{500, KindServer},
		{503, KindServer},
	}

	for _, tt := range tests {
		if got := KindOfStatus(tt.status); got != tt.expected {
			t.Errorf("KindOfStatus(%d) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestSentinelMatching(t *testing.T) {
	notFound := &ClientError{StatusCode: 404}
	if !errors.Is(notFound, ErrClient) {
		t.Error("404 should match ErrClient")
	}
	if !errors.Is(notFound, ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
	if errors.Is(notFound, ErrUnauthorized) {
		t.Error("404 should not match ErrUnauthorized")
	}

	forbidden := &ClientError{StatusCode: 403}
	if !errors.Is(forbidden, ErrUnauthorized) {
		t.Error("403 should match ErrUnauthorized")
	}

	cancelled := &CancelledError{Err: context.DeadlineExceeded}
	if !errors.Is(cancelled, ErrCancelled) {
		t.Error("CancelledError should match ErrCancelled")
	}
	if !errors.Is(cancelled, context.DeadlineExceeded) {
		t.Error("CancelledError should unwrap to the context error")
	}

	if !errors.Is(&ConfigurationError{Field: "api_key"}, ErrConfiguration) {
		t.Error("ConfigurationError should match ErrConfiguration")
	}
}

func TestProblemString(t *testing.T) {
	p := &Problem{
		Title:  "Validation failed",
		Detail: "The request body is invalid",
		Errors: []ProblemField{
			{Pointer: "/originId", Detail: "must be a place id"},
			{Pointer: "/passengerAges/0/dateOfBirth", Detail: "must be in the past"},
		},
	}

	expected := "Validation failed: The request body is invalid\n" +
		"  - /originId: must be a place id\n" +
		"  - /passengerAges/0/dateOfBirth: must be in the past"
	if got := p.String(); got != expected {
		t.Errorf("Problem.String() = %q, want %q", got, expected)
	}

	var nilProblem *Problem
	if got := nilProblem.String(); got != "" {
		t.Errorf("nil Problem.String() = %q, want empty", got)
	}
}

func TestClientError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClientError
		expected string
	}{
		{
			name: "problem document",
			err: &ClientError{
				Meta:       Meta{Operation: "bookings.create", Attempts: 1, RequestID: "req-1"},
				StatusCode: 422,
				Problem:    &Problem{Title: "Unprocessable", Detail: "offer expired"},
			},
			expected: "junction client error (status 422): Unprocessable: offer expired [op=bookings.create attempts=1 request_id=req-1]",
		},
		{
			name:     "raw body",
			err:      &ClientError{StatusCode: 400, Body: "bad"},
			expected: "junction client error (status 400): bad",
		},
		{
			name:     "status text fallback",
			err:      &ClientError{StatusCode: 404},
			expected: "junction client error (status 404): Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(fmt.Errorf("wrapped: %w", &RateLimitedError{RetryAfter: 2 * time.Second}))
	if !ok || d != 2*time.Second {
		t.Errorf("RetryAfter = %v, %v; want 2s, true", d, ok)
	}

	if _, ok := RetryAfter(&ServerError{StatusCode: 500}); ok {
		t.Error("RetryAfter should be false for a server error")
	}
}

func TestWithAttempts(t *testing.T) {
	err := WithAttempts(&ServerError{StatusCode: 502}, 3)

	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServerError, got %T", err)
	}
	if se.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", se.Attempts)
	}

	foreign := errors.New("x")
	if WithAttempts(foreign, 2) != foreign {
		t.Error("foreign errors should pass through unchanged")
	}
}

func TestCancelled(t *testing.T) {
	if err := Cancelled(context.Background(), Meta{}); err != nil {
		t.Errorf("Cancelled(live ctx) = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Cancelled(ctx, Meta{Operation: "places.search"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Cancelled(done ctx) = %v, want context.Canceled", err)
	}
}
