package junction

import (
	"errors"
	"time"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/pkg/pagination"
)

// Error types returned by Client methods. Match them with errors.As, or
// match the sentinels below with errors.Is.
type (
	// ConfigurationError reports a missing or invalid client setting.
	ConfigurationError = apierr.ConfigurationError

	// ValidationError reports bad caller input. No request was sent.
	ValidationError = apierr.ValidationError

	// NetworkError reports a connection failure or per-attempt timeout.
	NetworkError = apierr.NetworkError

	// RateLimitedError reports a 429 response or a request held back by the
	// client-side rate limiter.
	RateLimitedError = apierr.RateLimitedError

	// ServerError reports a 5xx response.
	ServerError = apierr.ServerError

	// ClientError reports a 4xx response other than 429.
	ClientError = apierr.ClientError

	// DecodeError reports a response that does not match the expected schema.
	DecodeError = apierr.DecodeError

	// CancelledError reports that the caller's context ended the call.
	CancelledError = apierr.CancelledError

	// Problem is the error document returned by the API.
	Problem = apierr.Problem

	// ProblemField points at one invalid member of a request document.
	ProblemField = apierr.ProblemField

	// ErrorKind classifies an error.
	ErrorKind = apierr.Kind
)

// Sentinel errors.
var (
	ErrConfiguration = apierr.ErrConfiguration
	ErrValidation    = apierr.ErrValidation
	ErrNetwork       = apierr.ErrNetwork
	ErrRateLimited   = apierr.ErrRateLimited
	ErrServer        = apierr.ErrServer
	ErrClient        = apierr.ErrClient
	ErrDecode        = apierr.ErrDecode
	ErrCancelled     = apierr.ErrCancelled
	ErrNotFound      = apierr.ErrNotFound
	ErrUnauthorized  = apierr.ErrUnauthorized

	// ErrCursorReused is returned by an iterator whose server handed out a
	// page link it had already followed.
	ErrCursorReused = pagination.ErrCursorReused

	// ErrPageLimit ends a place search that reached PlaceQuery.MaxPages
	// while more pages remained.
	ErrPageLimit = pagination.ErrPageLimit

	// ErrClientClosed is returned by every method after Close.
	ErrClientClosed = errors.New("junction: client closed")

	// ErrResultsPending is returned when search results are still pending
	// after Config.PendingTimeout.
	ErrResultsPending = errors.New("junction: search results still pending")
)

// KindOf classifies err. It returns "" for errors not raised by this package.
func KindOf(err error) ErrorKind { return apierr.KindOf(err) }

// IsRetryable reports whether err is transient. Client methods already
// retried it up to the configured budget.
func IsRetryable(err error) bool { return apierr.Retryable(err) }

// RetryAfter returns the server or client-side retry hint carried by err.
func RetryAfter(err error) (time.Duration, bool) { return apierr.RetryAfter(err) }
