// Package testutil provides a configurable mock Junction API server.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behaviour of one mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request as seen by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// MockJunction is a configurable mock Junction server for testing.
type MockJunction struct {
	server    *httptest.Server
	mu        sync.RWMutex
	handlers  map[string]http.HandlerFunc
	sequences map[string][]MockResponse

	requests         []RecordedRequest
	conditionalCount int
}

// NewMockJunction starts a mock server.
func NewMockJunction() *MockJunction {
	mock := &MockJunction{
		handlers:  make(map[string]http.HandlerFunc),
		sequences: make(map[string][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}

		key := r.Method + " " + r.URL.Path
		var next *MockResponse
		if seq := mock.sequences[key]; len(seq) > 0 {
			next = &seq[0]
			if len(seq) > 1 {
				mock.sequences[key] = seq[1:]
			}
		}
		handler, exists := mock.handlers[key]
		mock.mu.Unlock()

		switch {
		case next != nil:
			write(w, *next)
		case exists:
			handler(w, r)
		default:
			write(w, NewProblemResponse(http.StatusNotFound, "Not Found", "no route for "+key))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockJunction) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the mock server.
func (m *MockJunction) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockJunction) Close() {
	m.server.Close()
}

// Reset clears recorded requests and counters.
func (m *MockJunction) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.conditionalCount = 0
}

// SetHandler sets a handler for method and path, e.g. "GET", "/places".
func (m *MockJunction) SetHandler(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+" "+path] = handler
}

// SetResponse answers every method+path request with resp.
func (m *MockJunction) SetResponse(method, path string, resp MockResponse) {
	m.SetHandler(method, path, func(w http.ResponseWriter, r *http.Request) {
		write(w, resp)
	})
}

// SetSequence answers successive requests with the given responses in
// order. The last response repeats once the sequence is exhausted.
func (m *MockJunction) SetSequence(method, path string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[method+" "+path] = resps
}

// Requests returns a copy of every recorded request.
func (m *MockJunction) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockJunction) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockJunction) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastRequest returns the most recent request, or false when none was made.
func (m *MockJunction) LastRequest() (RecordedRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewCachedJSONResponse creates a 200 OK JSON response with an ETag and
// max-age freshness.
func NewCachedJSONResponse(body, etag string, maxAge time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"ETag":          etag,
			"Cache-Control": fmt.Sprintf("max-age=%d", int(maxAge.Seconds())),
		},
	}
}

// NewCreatedResponse creates a 201 Created response pointing at location.
func NewCreatedResponse(location string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusCreated,
		Headers: map[string]string{
			"Location": location,
		},
	}
}

// NewPendingResponse creates a 202 Accepted "results pending" response.
func NewPendingResponse(retryAfter int) MockResponse {
	resp := MockResponse{StatusCode: http.StatusAccepted, Headers: map[string]string{}}
	if retryAfter > 0 {
		resp.Headers["Retry-After"] = fmt.Sprint(retryAfter)
	}
	return resp
}

// NewProblemResponse creates an error response with a problem document.
func NewProblemResponse(status int, title, detail string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body: fmt.Sprintf(`{"type":"https://errors.junction.dev/%d","title":%q,"status":%d,"instance":"/requests/test","detail":%q}`,
			status, title, status, detail),
		Headers: map[string]string{
			"Content-Type": "application/problem+json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter int) MockResponse {
	resp := NewProblemResponse(http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
	resp.Headers["Retry-After"] = fmt.Sprint(retryAfter)
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewProblemResponse(http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
}

// NewConditionalHandler answers 304 when If-None-Match matches etag and a
// full response otherwise.
func NewConditionalHandler(etag string, data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=60")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(data))
	}
}

// OffersPage renders a collection page in the API's envelope format.
func OffersPage(itemsJSON, next string) string {
	if next == "" {
		return fmt.Sprintf(`{"items":%s,"links":{"next":null}}`, itemsJSON)
	}
	return fmt.Sprintf(`{"items":%s,"links":{"next":%q}}`, itemsJSON, next)
}
