package cache

import "testing"

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "path only",
			key:  CacheKey{Operation: "places.get", Path: "/places/place_1", Tenant: "abc"},
			want: "junction:abc:places.get:/places/place_1",
		},
		{
			name: "query sorted",
			key: CacheKey{
				Operation: "places.search",
				Path:      "/places",
				Query:     "page[limit]=100&filter[name][like]=Berlin",
				Tenant:    "abc",
			},
			want: "junction:abc:places.search:/places?filter[name][like]=Berlin&page[limit]=100",
		},
		{
			name: "no tenant",
			key:  CacheKey{Operation: "bookings.get", Path: "bookings/b_1/"},
			want: "junction:-:bookings.get:/bookings/b_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Determinism(t *testing.T) {
	a := CacheKey{Operation: "offers.page", Path: "/flight-searches/fs_1/offers", Query: "b=2&a=1&a=0", Tenant: "t"}
	b := CacheKey{Operation: "offers.page", Path: "/flight-searches/fs_1/offers", Query: "a=0&a=1&b=2", Tenant: "t"}

	for i := 0; i < 10; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}
}

func TestCacheKey_TenantIsolation(t *testing.T) {
	a := CacheKey{Operation: "places.get", Path: "/places/p", Tenant: "tenant-a"}
	b := CacheKey{Operation: "places.get", Path: "/places/p", Tenant: "tenant-b"}

	if a.String() == b.String() {
		t.Error("keys for different tenants must differ")
	}
}
