// Package decode turns response envelopes into typed results or classified
// errors.
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/transport"
)

// now is replaced in tests.
var now = time.Now

// Decode classifies env by status. A 2xx body is parsed into dst and checked
// against dst's schema tags; any other status becomes the matching typed
// error. dst may be nil for operations without a result body.
func Decode(env *transport.Envelope, meta apierr.Meta, dst any) error {
	if err := Status(env, meta); err != nil {
		return err
	}
	if dst == nil {
		return nil
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Err: fmt.Errorf("destination must be a non-nil pointer, got %T", dst)}
	}

	body := bytes.TrimSpace(env.Body)
	if len(body) == 0 {
		return &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Err: errors.New("empty response body")}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Field: fieldOf(err), Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Err: errors.New("unexpected data after JSON document")}
	}

	if err := Validate(body, rv.Type()); err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			return &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Field: se.Field, Err: errors.New(se.Message)}
		}
		return &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Err: err}
	}
	return nil
}

// Status returns nil for a 2xx envelope and the classified error otherwise.
func Status(env *transport.Envelope, meta apierr.Meta) error {
	if env == nil {
		return &apierr.DecodeError{Meta: meta, Err: errors.New("no response")}
	}

	status := env.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil

	case status == http.StatusTooManyRequests:
		retryAfter, _ := transport.ParseRetryAfter(env.Header, now())
		return &apierr.RateLimitedError{
			Meta:       meta,
			StatusCode: status,
			RetryAfter: retryAfter,
			Problem:    parseProblem(env),
		}

	case status >= 500 && status < 600:
		return &apierr.ServerError{
			Meta:       meta,
			StatusCode: status,
			Problem:    parseProblem(env),
			Body:       string(env.Body),
		}

	case status >= 400:
		return &apierr.ClientError{
			Meta:       meta,
			StatusCode: status,
			Problem:    parseProblem(env),
			Body:       string(env.Body),
		}
	}

	return &apierr.DecodeError{Meta: meta, StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
}

// Location returns the Location header of a successful response. Search
// endpoints point at their result collection with it.
func Location(env *transport.Envelope, meta apierr.Meta) (string, error) {
	if err := Status(env, meta); err != nil {
		return "", err
	}
	loc := strings.TrimSpace(env.Header.Get("Location"))
	if loc == "" {
		return "", &apierr.DecodeError{Meta: meta, StatusCode: env.StatusCode, Field: "Location", Err: errors.New("missing header")}
	}
	return loc, nil
}

// parseProblem reads the API's error document. Bodies that are not a
// problem document yield nil and are kept raw by the caller.
func parseProblem(env *transport.Envelope) *apierr.Problem {
	body := bytes.TrimSpace(env.Body)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var p apierr.Problem
	if err := json.Unmarshal(body, &p); err != nil {
		return nil
	}
	if p.Title == "" && p.Detail == "" && p.Type == "" {
		return nil
	}
	return &p
}

func fieldOf(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return te.Field
	}
	return ""
}
