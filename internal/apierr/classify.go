package apierr

import (
	"errors"
	"net/http"
	"time"
)

// KindOf returns the classification of err, or "" for foreign errors.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrServer):
		return KindServer
	case errors.Is(err, ErrClient):
		return KindClient
	case errors.Is(err, ErrDecode):
		return KindDecode
	}
	return ""
}

// KindOfStatus classifies an HTTP status code. Statuses below 400 are
// successes and return "".
func KindOfStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	}
	return ""
}

// Retryable reports whether another attempt may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimited, KindServer:
		return true
	}
	return false
}

// RetryAfter returns the server or local retry hint carried by err.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// WithAttempts records the attempt count on err when it carries Meta.
// Foreign errors are returned unchanged.
func WithAttempts(err error, attempts int) error {
	switch e := err.(type) {
	case *NetworkError:
		e.Attempts = attempts
	case *RateLimitedError:
		e.Attempts = attempts
	case *ServerError:
		e.Attempts = attempts
	case *ClientError:
		e.Attempts = attempts
	case *DecodeError:
		e.Attempts = attempts
	case *CancelledError:
		e.Attempts = attempts
	}
	return err
}

// WithRequestID records the logical call's request ID on err.
func WithRequestID(err error, id string) error {
	switch e := err.(type) {
	case *ValidationError:
		e.RequestID = id
	case *NetworkError:
		e.RequestID = id
	case *RateLimitedError:
		e.RequestID = id
	case *ServerError:
		e.RequestID = id
	case *ClientError:
		e.RequestID = id
	case *DecodeError:
		e.RequestID = id
	case *CancelledError:
		e.RequestID = id
	}
	return err
}
