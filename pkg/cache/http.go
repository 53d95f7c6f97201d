package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback freshness when the response carries none
	DefaultTTL = 5 * time.Minute
)

// NewEntry builds a CacheEntry from a response received at now.
func NewEntry(status int, header http.Header, body []byte, now time.Time) *CacheEntry {
	entry := &CacheEntry{
		Data:       append([]byte(nil), body...),
		ETag:       header.Get("ETag"),
		StatusCode: status,
		Headers:    header.Clone(),
		CachedAt:   now,
		Expires:    ParseExpires(header, now),
	}
	if lm := header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}
	return entry
}

// Cacheable reports whether a response with these headers may be stored.
func Cacheable(header http.Header) bool {
	for _, directive := range cacheControl(header) {
		if directive == "no-store" {
			return false
		}
	}
	return true
}

// ParseExpires derives the expiry from Cache-Control max-age, then the
// Expires header, then DefaultTTL. no-cache yields an already-stale expiry.
func ParseExpires(header http.Header, now time.Time) time.Time {
	for _, directive := range cacheControl(header) {
		switch {
		case directive == "no-cache":
			return now
		case strings.HasPrefix(directive, "max-age="):
			if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil {
				if secs < 0 {
					secs = 0
				}
				return now.Add(time.Duration(secs) * time.Second)
			}
		}
	}

	expiresStr := header.Get("Expires")
	if expiresStr == "" {
		return now.Add(DefaultTTL)
	}
	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return now.Add(DefaultTTL)
	}
	if expires.Before(now) {
		return now
	}
	return expires
}

// ConditionalHeaders returns the If-None-Match or If-Modified-Since header
// for revalidating entry, preferring the ETag.
func ConditionalHeaders(entry *CacheEntry) http.Header {
	h := make(http.Header)
	if entry == nil {
		return h
	}
	if entry.ETag != "" {
		h.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		h.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
	return h
}

func cacheControl(header http.Header) []string {
	var out []string
	for _, line := range header.Values("Cache-Control") {
		for _, part := range strings.Split(line, ",") {
			if d := strings.ToLower(strings.TrimSpace(part)); d != "" {
				out = append(out, d)
			}
		}
	}
	return out
}
