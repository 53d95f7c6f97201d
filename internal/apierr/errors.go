// Package apierr defines the error taxonomy shared by every layer of the
// Junction client. The public package re-exports these types.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind classifies an error for retry decisions and observability.
type Kind string

const (
	// KindConfiguration represents a missing or invalid client setting.
	KindConfiguration Kind = "configuration"

	// KindValidation represents bad caller input, detected before any I/O.
	KindValidation Kind = "validation"

	// KindNetwork represents a transport failure or per-attempt timeout.
	KindNetwork Kind = "network"

	// KindRateLimited represents a 429 response or a locally enforced limit.
	KindRateLimited Kind = "rate_limited"

	// KindServer represents a 5xx response.
	KindServer Kind = "server"

	// KindClient represents a 4xx response other than 429.
	KindClient Kind = "client"

	// KindDecode represents a response that violates the expected schema.
	KindDecode Kind = "decode"

	// KindCancelled represents cancellation by the caller's context.
	KindCancelled Kind = "cancelled"
)

// Sentinels matched through errors.Is.
var (
	ErrConfiguration = errors.New("junction: configuration error")
	ErrValidation    = errors.New("junction: validation error")
	ErrNetwork       = errors.New("junction: network error")
	ErrRateLimited   = errors.New("junction: rate limited")
	ErrServer        = errors.New("junction: server error")
	ErrClient        = errors.New("junction: client error")
	ErrDecode        = errors.New("junction: decode error")
	ErrCancelled     = errors.New("junction: cancelled")

	// ErrNotFound matches a ClientError with status 404.
	ErrNotFound = errors.New("junction: not found")

	// ErrUnauthorized matches a ClientError with status 401 or 403.
	ErrUnauthorized = errors.New("junction: unauthorized")
)

// Meta is the call context copied into every error raised for a request.
type Meta struct {
	Operation string
	Attempts  int
	RequestID string
}

func (m Meta) suffix() string {
	var b strings.Builder
	if m.Operation != "" {
		fmt.Fprintf(&b, " [op=%s", m.Operation)
		if m.Attempts > 0 {
			fmt.Fprintf(&b, " attempts=%d", m.Attempts)
		}
		if m.RequestID != "" {
			fmt.Fprintf(&b, " request_id=%s", m.RequestID)
		}
		b.WriteString("]")
	}
	return b.String()
}

// ConfigurationError reports a missing or invalid client setting.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "junction configuration: " + e.Message
	}
	return fmt.Sprintf("junction configuration: %s: %s", e.Field, e.Message)
}

// Is implements errors.Is for sentinel matching.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError reports a caller-supplied parameter that failed validation.
type ValidationError struct {
	Meta
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("junction validation: parameter %q: %s%s", e.Param, e.Message, e.Meta.suffix())
}

// Is implements errors.Is for sentinel matching.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NetworkError reports a failed attempt that produced no HTTP response.
type NetworkError struct {
	Meta
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("junction network error: %v%s", e.Err, e.Meta.suffix())
	}
	return fmt.Sprintf("junction network error: %s %s: %v%s", e.Method, e.Path, e.Err, e.Meta.suffix())
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel matching.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ProblemField points at one invalid member of a request document.
type ProblemField struct {
	Pointer string `json:"pointer"`
	Detail  string `json:"detail"`
}

// Problem is the structured error document returned by the API.
type Problem struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Instance string         `json:"instance"`
	Detail   string         `json:"detail"`
	Errors   []ProblemField `json:"errors,omitempty"`
}

// String renders the problem as "title: detail" followed by one line per field.
func (p *Problem) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	switch {
	case p.Title != "" && p.Detail != "":
		b.WriteString(p.Title + ": " + p.Detail)
	case p.Title != "":
		b.WriteString(p.Title)
	default:
		b.WriteString(p.Detail)
	}
	for _, f := range p.Errors {
		fmt.Fprintf(&b, "\n  - %s: %s", f.Pointer, f.Detail)
	}
	return b.String()
}

// ClientError reports a 4xx response other than 429. The server's problem
// document and raw body are kept verbatim.
type ClientError struct {
	Meta
	StatusCode int
	Problem    *Problem
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("junction client error (status %d): %s%s", e.StatusCode, detail(e.Problem, e.Body, e.StatusCode), e.Meta.suffix())
}

// Is implements errors.Is for sentinel matching.
func (e *ClientError) Is(target error) bool {
	switch target {
	case ErrClient:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Code returns the server-supplied error type, if any.
func (e *ClientError) Code() string {
	if e.Problem == nil {
		return ""
	}
	return e.Problem.Type
}

// RateLimitedError reports a 429 response, or a request held back locally
// because the rate-limit window is known to be exhausted.
type RateLimitedError struct {
	Meta
	StatusCode int
	RetryAfter time.Duration
	Problem    *Problem
	Local      bool
}

func (e *RateLimitedError) Error() string {
	src := "server"
	if e.Local {
		src = "client"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("junction rate limited (%s): retry after %s%s", src, e.RetryAfter, e.Meta.suffix())
	}
	return fmt.Sprintf("junction rate limited (%s)%s", src, e.Meta.suffix())
}

// Is implements errors.Is for sentinel matching.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// ServerError reports a 5xx response.
type ServerError struct {
	Meta
	StatusCode int
	Problem    *Problem
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("junction server error (status %d): %s%s", e.StatusCode, detail(e.Problem, e.Body, e.StatusCode), e.Meta.suffix())
}

// Is implements errors.Is for sentinel matching.
func (e *ServerError) Is(target error) bool { return target == ErrServer }

// DecodeError reports a response body that does not satisfy the expected
// schema. It is never downgraded to a partial result.
type DecodeError struct {
	Meta
	StatusCode int
	Field      string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("junction decode error (status %d): field %q: %v%s", e.StatusCode, e.Field, e.Err, e.Meta.suffix())
	}
	return fmt.Sprintf("junction decode error (status %d): %v%s", e.StatusCode, e.Err, e.Meta.suffix())
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel matching.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// CancelledError reports that the caller's context ended the call. It wraps
// context.Canceled or context.DeadlineExceeded.
type CancelledError struct {
	Meta
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("junction call cancelled: %v%s", e.Err, e.Meta.suffix())
}

// Unwrap returns the context error.
func (e *CancelledError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel matching.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// Cancelled wraps a context error, or returns nil when ctx is still live.
func Cancelled(ctx context.Context, meta Meta) error {
	if err := ctx.Err(); err != nil {
		return &CancelledError{Meta: meta, Err: err}
	}
	return nil
}

func detail(p *Problem, body string, status int) string {
	if s := p.String(); s != "" {
		return s
	}
	if body != "" {
		return body
	}
	return http.StatusText(status)
}
