package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/credential"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/internal/testutil"
	"github.com/junction-dev/junction-go/pkg/metrics"
	"github.com/junction-dev/junction-go/pkg/ratelimit"
)

func testCredential(t *testing.T) credential.Credential {
	t.Helper()
	c, err := credential.ResolveWith("sk_test_123", nil)
	require.NoError(t, err)
	return c
}

func newTestTransport(t *testing.T, mock *testutil.MockJunction, mutate func(*Config)) (*Transport, *request.Builder) {
	t.Helper()
	b, err := request.NewBuilder(mock.URL())
	require.NoError(t, err)

	cfg := Config{
		BaseURL:   b.BaseURL(),
		Timeout:   2 * time.Second,
		UserAgent: "junction-go/test",
		Logger:    zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	tr, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, b
}

func TestTransportSendHeaders(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("POST", "/bookings", testutil.NewJSONResponse(`{"id":"b_1"}`))

	tr, b := newTestTransport(t, mock, nil)
	spec, err := b.Build(request.OpCreateBooking, nil, map[string]string{"offerId": "o_1"})
	require.NoError(t, err)

	env, err := tr.Send(context.Background(), spec.WithHeader("X-Request-ID", "req-1"), testCredential(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.StatusCode)
	assert.JSONEq(t, `{"id":"b_1"}`, string(env.Body))

	got, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "sk_test_123", got.Header.Get("x-api-key"))
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "junction-go/test", got.Header.Get("User-Agent"))
	assert.Equal(t, "req-1", got.Header.Get("X-Request-ID"))
	assert.JSONEq(t, `{"offerId":"o_1"}`, string(got.Body))
}

func TestTransportBearerScheme(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/p_1", testutil.NewJSONResponse(`{}`))

	tr, b := newTestTransport(t, mock, func(c *Config) { c.AuthScheme = AuthBearer })
	spec, err := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)

	got, _ := mock.LastRequest()
	assert.Equal(t, "Bearer sk_test_123", got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("x-api-key"))
	assert.Empty(t, got.Header.Get("Content-Type"), "GET without body carries no content type")
}

func TestTransportReturnsErrorStatusesAsEnvelopes(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/p_1", testutil.NewServerErrorResponse())

	tr, b := newTestTransport(t, mock, nil)
	spec, _ := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)

	env, err := tr.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, env.StatusCode)
}

func TestTransportTimeoutIsNetworkError(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	slow := testutil.NewJSONResponse(`{}`)
	slow.Delay = 500 * time.Millisecond
	mock.SetResponse("GET", "/places/p_1", slow)

	tr, b := newTestTransport(t, mock, func(c *Config) { c.Timeout = 50 * time.Millisecond })
	spec, _ := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)

	_, err := tr.Send(context.Background(), spec, testCredential(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrNetwork)
	assert.NotErrorIs(t, err, apierr.ErrCancelled)
}

func TestTransportCallerCancellation(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	slow := testutil.NewJSONResponse(`{}`)
	slow.Delay = 500 * time.Millisecond
	mock.SetResponse("GET", "/places/p_1", slow)

	tr, b := newTestTransport(t, mock, nil)
	spec, _ := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, spec, testCredential(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportConnectionFailure(t *testing.T) {
	u, _ := url.Parse("http://127.0.0.1:1")
	reg := prometheus.NewRegistry()
	tr, err := New(Config{BaseURL: u, Timeout: time.Second, Logger: zerolog.Nop(), Metrics: metrics.New(reg)})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), &request.Spec{Operation: request.OpGetPlace, Method: "GET", Path: "/places/x"}, testCredential(t))
	var ne *apierr.NetworkError
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.Equal(t, "GET", ne.Method)
	assert.NotContains(t, err.Error(), "sk_test_123")
}

func TestTransportOversizeBodyIsDecodeError(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/p_1", testutil.NewJSONResponse(`{"id":"p_1","name":"Berlin Hbf"}`))

	tr, b := newTestTransport(t, mock, nil)
	tr.maxBody = 8 << 20
	spec, _ := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)

	env, err := tr.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err, "bodies under the cap are read whole")
	assert.Contains(t, string(env.Body), "Berlin Hbf")

	tr.maxBody = 10
	_, err = tr.Send(context.Background(), spec, testCredential(t))
	var derr *apierr.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusOK, derr.StatusCode)
	assert.Contains(t, err.Error(), "response body exceeds")
	assert.False(t, apierr.Retryable(err))
}

func TestTransportDebugLogRedactsCredential(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/p_1", testutil.NewJSONResponse(`{}`))

	var buf bytes.Buffer
	tr, b := newTestTransport(t, mock, func(c *Config) {
		c.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	})
	spec, _ := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)

	_, err := tr.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "request_headers")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "sk_test_123")
}

func TestTransportMetrics(t *testing.T) {
	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/p_1", testutil.NewJSONResponse(`{}`))

	collectors := metrics.New(prometheus.NewRegistry())
	tr, b := newTestTransport(t, mock, func(c *Config) { c.Metrics = collectors })
	spec, _ := b.Build(request.OpGetPlace, request.Params{"placeId": "p_1"}, nil)

	_, err := tr.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(collectors.RequestsTotal.WithLabelValues("places.get", "200")))
}

func TestNewRejectsBadConfig(t *testing.T) {
	u, _ := url.Parse("https://example.test")
	tests := []Config{
		{},
		{BaseURL: u, Timeout: -time.Second},
		{BaseURL: u, AuthScheme: "basic"},
	}
	for _, cfg := range tests {
		_, err := New(cfg)
		assert.ErrorIs(t, err, apierr.ErrConfiguration)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"2", 2 * time.Second, true},
		{"0", 0, true},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"-1", 0, false},
		{"later", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		got, ok := ParseRetryAfter(h, now)
		assert.Equal(t, tt.ok, ok, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Api-Key", "sk_secret")
	h.Set("Authorization", "Bearer sk_secret")
	h.Set("Accept", "application/json")

	r := RedactHeaders(h)
	assert.Equal(t, "[REDACTED]", r.Get("X-Api-Key"))
	assert.Equal(t, "[REDACTED]", r.Get("Authorization"))
	assert.Equal(t, "application/json", r.Get("Accept"))
	assert.Equal(t, "sk_secret", h.Get("X-Api-Key"), "original must be untouched")
	assert.Nil(t, RedactHeaders(nil))
}

func TestGatedSenderHoldsBackExhaustedWindow(t *testing.T) {
	calls := 0
	next := SenderFunc(func(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
		calls++
		h := http.Header{}
		h.Set(ratelimit.HeaderRemaining, "0")
		h.Set(ratelimit.HeaderReset, "30")
		return &Envelope{StatusCode: 200, Header: h, Body: []byte(`{}`)}, nil
	})

	tracker := ratelimit.NewTracker(ratelimit.NewMemoryStore(), zerolog.Nop())
	g := NewGatedSender(next, nil, tracker, zerolog.Nop())
	spec := &request.Spec{Operation: request.OpGetPlace, Method: "GET", Path: "/places/p"}

	_, err := g.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)

	_, err = g.Send(context.Background(), spec, testCredential(t))
	var rl *apierr.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.True(t, rl.Local)
	assert.Greater(t, rl.RetryAfter, 25*time.Second)
	assert.Equal(t, 1, calls, "held-back request must not reach the network")
}

func TestGatedSenderRecords429RetryAfter(t *testing.T) {
	next := SenderFunc(func(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
		h := http.Header{}
		h.Set("Retry-After", "5")
		return &Envelope{StatusCode: http.StatusTooManyRequests, Header: h}, nil
	})

	tracker := ratelimit.NewTracker(nil, zerolog.Nop())
	g := NewGatedSender(next, nil, tracker, zerolog.Nop())
	spec := &request.Spec{Operation: request.OpGetPlace, Method: "GET", Path: "/places/p"}

	env, err := g.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, env.StatusCode)

	wait, allowed, err := tracker.Allow(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, wait, 4*time.Second)
}

func TestGatedSenderLimiterCancelled(t *testing.T) {
	next := SenderFunc(func(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
		t.Fatal("must not be called")
		return nil, nil
	})
	g := NewGatedSender(next, ratelimit.NewLimiter(1, 1), nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Send(ctx, &request.Spec{Operation: request.OpGetPlace, Method: "GET", Path: "/p"}, testCredential(t))
	assert.ErrorIs(t, err, apierr.ErrCancelled)
}

func TestGatedSenderPacesBurst(t *testing.T) {
	calls := 0
	next := SenderFunc(func(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
		calls++
		return &Envelope{StatusCode: http.StatusOK, Header: http.Header{}}, nil
	})

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	g := NewGatedSender(next, ratelimit.NewLimiter(20, 1), nil, logger)
	spec := &request.Spec{Operation: request.OpGetPlace, Method: "GET", Path: "/places/p"}

	_, err := g.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Pacing request", "first token is taken without waiting")

	start := time.Now()
	_, err = g.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Contains(t, buf.String(), "Pacing request")
	assert.Equal(t, 2, calls)
}

func TestGatedSenderLimiterDeadline(t *testing.T) {
	next := SenderFunc(func(ctx context.Context, spec *request.Spec, cred credential.Credential) (*Envelope, error) {
		return &Envelope{StatusCode: http.StatusOK, Header: http.Header{}}, nil
	})
	g := NewGatedSender(next, ratelimit.NewLimiter(0.1, 1), nil, zerolog.Nop())
	spec := &request.Spec{Operation: request.OpGetPlace, Method: "GET", Path: "/places/p"}

	_, err := g.Send(context.Background(), spec, testCredential(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Send(ctx, spec, testCredential(t))
	var rl *apierr.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.True(t, rl.Local)
}
