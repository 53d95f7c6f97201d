package credential

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/junction-dev/junction-go/internal/apierr"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}
}

func TestResolveWith(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		env      map[string]string
		want     string
		wantErr  bool
	}{
		{name: "explicit beats env", explicit: "sk_explicit", env: map[string]string{EnvVar: "sk_env"}, want: "sk_explicit"},
		{name: "env fallback", env: map[string]string{EnvVar: "sk_env"}, want: "sk_env"},
		{name: "whitespace-only explicit falls back", explicit: "   ", env: map[string]string{EnvVar: "sk_env"}, want: "sk_env"},
		{name: "explicit is trimmed", explicit: " sk_trim\n", want: "sk_trim"},
		{name: "neither set", wantErr: true},
		{name: "empty env", env: map[string]string{EnvVar: ""}, wantErr: true},
		{name: "control characters rejected", explicit: "sk\r\nX-Evil: 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ResolveWith(tt.explicit, env(tt.env))
			if tt.wantErr {
				if !errors.Is(err, apierr.ErrConfiguration) {
					t.Fatalf("expected configuration error, got %v", err)
				}
				var ce *apierr.ConfigurationError
				if !errors.As(err, &ce) || ce.Field != "api_key" {
					t.Errorf("expected Field api_key, got %+v", ce)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Value() != tt.want {
				t.Errorf("Value() = %q, want %q", c.Value(), tt.want)
			}
		})
	}
}

func TestCredentialRedaction(t *testing.T) {
	c, err := ResolveWith("sk_live_secret", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, verb := range []string{"%v", "%+v", "%s", "%#v"} {
		out := fmt.Sprintf(verb, c)
		if strings.Contains(out, "sk_live_secret") {
			t.Errorf("%s leaked the key: %s", verb, out)
		}
	}

	type holder struct{ C Credential }
	if out := fmt.Sprintf("%+v", holder{c}); strings.Contains(out, "secret") {
		t.Errorf("nested formatting leaked the key: %s", out)
	}
}

func TestFingerprint(t *testing.T) {
	a, _ := ResolveWith("key-a", nil)
	a2, _ := ResolveWith("key-a", nil)
	b, _ := ResolveWith("key-b", nil)

	if a.Fingerprint() != a2.Fingerprint() {
		t.Error("fingerprint should be stable")
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different keys should have different fingerprints")
	}
	if len(a.Fingerprint()) != 12 {
		t.Errorf("fingerprint length = %d, want 12", len(a.Fingerprint()))
	}
	if (Credential{}).Fingerprint() != "" {
		t.Error("zero credential should have empty fingerprint")
	}
}
