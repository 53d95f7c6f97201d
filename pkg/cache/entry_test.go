package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: now.Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: now.Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "expires exactly now",
			expires: now,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := &CacheEntry{Expires: now.Add(90 * time.Second)}
	if got := entry.TTL(now); got != 90*time.Second {
		t.Errorf("TTL() = %v, want 90s", got)
	}

	stale := &CacheEntry{Expires: now.Add(-time.Minute)}
	if got := stale.TTL(now); got != 0 {
		t.Errorf("TTL() of stale entry = %v, want 0", got)
	}
}

func TestCacheEntry_Revalidatable(t *testing.T) {
	tests := []struct {
		name  string
		entry *CacheEntry
		want  bool
	}{
		{name: "nil", entry: nil, want: false},
		{name: "no validators", entry: &CacheEntry{}, want: false},
		{name: "etag", entry: &CacheEntry{ETag: `"v1"`}, want: true},
		{name: "last modified", entry: &CacheEntry{LastModified: time.Now()}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Revalidatable(); got != tt.want {
				t.Errorf("Revalidatable() = %v, want %v", got, tt.want)
			}
		})
	}
}
