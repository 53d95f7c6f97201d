package transport

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseRetryAfter reads a Retry-After header given in delta-seconds or as
// an HTTP date. It returns false when the header is absent or invalid.
func ParseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// RedactHeaders returns a copy of h safe for logging.
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	cp := make(http.Header, len(h))
	for k, vs := range h {
		switch http.CanonicalHeaderKey(k) {
		case "X-Api-Key", "Authorization", "Cookie", "Set-Cookie":
			cp[k] = []string{"[REDACTED]"}
		default:
			cp[k] = append([]string(nil), vs...)
		}
	}
	return cp
}
