// Package transport performs single HTTP attempts against the Junction API.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/credential"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/pkg/metrics"
)

// DefaultTimeout bounds a single attempt when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// AuthScheme selects the header that carries the credential.
type AuthScheme string

const (
	// AuthAPIKey sends the key in an x-api-key header.
	AuthAPIKey AuthScheme = "api-key"

	// AuthBearer sends the key as an Authorization bearer token.
	AuthBearer AuthScheme = "bearer"
)

// Envelope is the raw outcome of one HTTP attempt.
type Envelope struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Cached is set when the envelope was served from the response cache.
	Cached bool
}

// Sender performs exactly one attempt for spec.
type Sender interface {
	Send(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
	return f(ctx, spec, cred)
}

// Config configures a Transport.
type Config struct {
	BaseURL    *url.URL
	Timeout    time.Duration
	AuthScheme AuthScheme
	UserAgent  string

	// HTTPClient overrides the pooled client. Its Timeout is ignored in
	// favour of Config.Timeout.
	HTTPClient *http.Client

	Logger  zerolog.Logger
	Metrics *metrics.Collectors
}

// Transport is the network Sender. It is safe for concurrent use.
type Transport struct {
	base       *url.URL
	timeout    time.Duration
	authScheme AuthScheme
	userAgent  string
	httpClient *http.Client
	ownsClient bool
	maxBody    int64
	logger     zerolog.Logger
	metrics    *metrics.Collectors
}

// New creates a Transport.
func New(cfg Config) (*Transport, error) {
	if cfg.BaseURL == nil {
		return nil, &apierr.ConfigurationError{Field: "base_url", Message: "must be set"}
	}
	if cfg.Timeout < 0 {
		return nil, &apierr.ConfigurationError{Field: "timeout", Message: "must not be negative"}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	scheme := cfg.AuthScheme
	switch scheme {
	case "":
		scheme = AuthAPIKey
	case AuthAPIKey, AuthBearer:
	default:
		return nil, &apierr.ConfigurationError{Field: "auth_scheme", Message: fmt.Sprintf("unknown scheme %q", scheme)}
	}

	hc, owns := cfg.HTTPClient, false
	if hc == nil {
		hc, owns = cleanhttp.DefaultPooledClient(), true
	}

	return &Transport{
		base:       cfg.BaseURL,
		timeout:    timeout,
		authScheme: scheme,
		userAgent:  cfg.UserAgent,
		httpClient: hc,
		ownsClient: owns,
		maxBody:    maxBodyBytes,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Send performs one attempt bounded by the per-attempt timeout.
func (t *Transport) Send(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
	meta := apierr.Meta{Operation: string(spec.Operation), RequestID: spec.Header.Get("X-Request-ID")}
	if err := apierr.Cancelled(ctx, meta); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := t.newRequest(attemptCtx, spec, cred)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.record(spec, "error", start)
		return nil, t.classify(ctx, spec, meta, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		t.record(spec, "error", start)
		return nil, t.classify(ctx, spec, meta, fmt.Errorf("read response body: %w", err))
	}
	if int64(len(body)) > t.maxBody {
		t.record(spec, strconv.Itoa(resp.StatusCode), start)
		return nil, &apierr.DecodeError{
			Meta:       meta,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d MiB", t.maxBody>>20),
		}
	}

	t.record(spec, strconv.Itoa(resp.StatusCode), start)
	t.logger.Debug().
		Str("operation", string(spec.Operation)).
		Str("method", spec.Method).
		Str("path", spec.Path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", meta.RequestID).
		Func(func(e *zerolog.Event) {
			e.Interface("request_headers", RedactHeaders(req.Header))
		}).
		Msg("Junction request completed")

	return &Envelope{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Close releases idle pooled connections.
func (t *Transport) Close() error {
	if t.ownsClient {
		t.httpClient.CloseIdleConnections()
	}
	return nil
}

func (t *Transport) newRequest(ctx context.Context, spec *request.Spec, cred credential.Credential) (*http.Request, error) {
	var body io.Reader
	if spec.Body != nil {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL(t.base).String(), body)
	if err != nil {
		return nil, &apierr.ValidationError{
			Meta:    apierr.Meta{Operation: string(spec.Operation)},
			Param:   "request",
			Message: err.Error(),
		}
	}

	for k, vs := range spec.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	switch t.authScheme {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+cred.Value())
	default:
		req.Header.Set("x-api-key", cred.Value())
	}
	return req, nil
}

// classify maps a transport error to CancelledError when the caller's
// context ended, otherwise to NetworkError. A per-attempt timeout is a
// NetworkError because the caller's context is still live.
func (t *Transport) classify(ctx context.Context, spec *request.Spec, meta apierr.Meta, err error) error {
	if cerr := apierr.Cancelled(ctx, meta); cerr != nil {
		t.metrics.ObserveError(string(apierr.KindCancelled))
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("attempt timed out after %s: %w", t.timeout, err)
	}
	t.metrics.ObserveError(string(apierr.KindNetwork))
	t.logger.Debug().
		Str("operation", string(spec.Operation)).
		Str("method", spec.Method).
		Str("path", spec.Path).
		Err(err).
		Msg("Junction request failed")

	return &apierr.NetworkError{Meta: meta, Method: spec.Method, Path: spec.Path, Err: err}
}

func (t *Transport) record(spec *request.Spec, status string, start time.Time) {
	t.metrics.ObserveRequest(string(spec.Operation), status, time.Since(start).Seconds())
}
