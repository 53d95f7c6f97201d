// Package credential resolves the API key used to authenticate requests.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"unicode"

	"github.com/junction-dev/junction-go/internal/apierr"
)

// EnvVar is the environment variable consulted when no explicit key is given.
const EnvVar = "JUNCTION_API_KEY"

// Credential is an opaque, immutable API key. Its fmt verbs never print the
// secret.
type Credential struct {
	key string
}

// Resolve returns the explicit key if non-empty, otherwise the value of
// JUNCTION_API_KEY.
func Resolve(explicit string) (Credential, error) {
	return ResolveWith(explicit, os.LookupEnv)
}

// ResolveWith is Resolve with an injectable environment lookup.
func ResolveWith(explicit string, lookup func(string) (string, bool)) (Credential, error) {
	key := strings.TrimSpace(explicit)
	source := "explicit"
	if key == "" && lookup != nil {
		if v, ok := lookup(EnvVar); ok {
			key = strings.TrimSpace(v)
			source = EnvVar
		}
	}

	if key == "" {
		return Credential{}, &apierr.ConfigurationError{
			Field:   "api_key",
			Message: "no API key supplied and " + EnvVar + " is not set",
		}
	}
	if strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return Credential{}, &apierr.ConfigurationError{
			Field:   "api_key",
			Message: source + " API key contains control characters",
		}
	}

	return Credential{key: key}, nil
}

// Value returns the raw key for placement in a request header.
func (c Credential) Value() string { return c.key }

// IsZero reports whether c was never resolved.
func (c Credential) IsZero() bool { return c.key == "" }

// Fingerprint returns a short, stable, non-reversible identifier for the key.
func (c Credential) Fingerprint() string {
	if c.key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c.key))
	return hex.EncodeToString(sum[:6])
}

// String implements fmt.Stringer without revealing the key.
func (c Credential) String() string {
	if c.key == "" {
		return "Credential(unset)"
	}
	return "Credential(" + c.Fingerprint() + ")"
}

// GoString implements fmt.GoStringer without revealing the key.
func (c Credential) GoString() string { return c.String() }
