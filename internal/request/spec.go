// Package request turns logical operations into canonical HTTP request
// descriptions.
package request

import (
	"net/http"
	"net/url"
)

// Spec describes one wire request. It is treated as immutable: the
// With* methods return modified copies.
type Spec struct {
	Operation OperationID
	Method    string

	// Path is relative to the client's base URL and already escaped.
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// WithHeader returns a copy of s with key set to value.
func (s *Spec) WithHeader(key, value string) *Spec {
	c := *s
	c.Header = s.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Header.Set(key, value)
	return &c
}

// Idempotent reports whether the method can be repeated without side effects.
func (s *Spec) Idempotent() bool {
	switch s.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// URL joins the spec's path and query onto base.
func (s *Spec) URL(base *url.URL) *url.URL {
	u := *base
	u.RawPath = ""
	u.Path = joinPath(base.Path, s.Path)
	u.RawQuery = s.RawQuery
	u.Fragment = ""
	if p, err := url.PathUnescape(u.Path); err == nil && p != u.Path {
		u.RawPath = u.Path
		u.Path = p
	}
	return &u
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case len(base) > 0 && base[len(base)-1] == '/':
		return base[:len(base)-1] + p
	}
	return base + p
}
