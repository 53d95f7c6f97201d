package cache

import (
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached response.
type CacheKey struct {
	// Operation is the logical operation ID (e.g., "places.get")
	Operation string

	// Path is the escaped request path relative to the API root
	Path string

	// Query is the raw query string; parameter order does not matter
	Query string

	// Tenant partitions entries per API key (credential fingerprint)
	Tenant string
}

// String generates a deterministic cache key string.
// Format: junction:tenant:operation:path?sorted-query
//
// Example:
//
//	junction:3fa2c1d0b9e4:places.search:/places?filter[name][like]=Berlin&page[limit]=100
func (k CacheKey) String() string {
	tenant := k.Tenant
	if tenant == "" {
		tenant = "-"
	}

	var b strings.Builder
	b.WriteString("junction:")
	b.WriteString(tenant)
	b.WriteByte(':')
	b.WriteString(k.Operation)
	b.WriteByte(':')
	b.WriteString("/" + strings.Trim(k.Path, "/"))

	if q := canonicalQuery(k.Query); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func canonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, "&")
}
