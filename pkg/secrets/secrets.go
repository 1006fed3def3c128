// Package secrets holds credentials (HMAC keys, API tokens, SMTP passwords)
// in a type that never prints its value.
package secrets

import (
	"fmt"
	"log/slog"
)

// Marker replaces the secret value in every printed or logged form.
const Marker = "[REDACTED]"

// Secret is sensitive data that must be passed around but not exposed.
type Secret struct {
	value []byte
}

// New wraps raw as a Secret.
func New(raw string) Secret {
	return Secret{value: []byte(raw)}
}

func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Marker))
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(Marker), nil
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(Marker)
}

// IsZero reports whether no secret was configured.
func (s Secret) IsZero() bool {
	return len(s.value) == 0
}

// Value returns the raw bytes for handing to crypto primitives and clients.
func (s Secret) Value() []byte {
	return s.value
}

// Reveal returns the raw value as a string for APIs that take one.
// Use only at the call boundary.
func (s Secret) Reveal() string {
	return string(s.value)
}
