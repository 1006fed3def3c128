package secrets_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/pkg/secrets"
)

func TestSecret_PreventExposure(t *testing.T) {
	const raw = "hmac-signing-key"
	secret := secrets.New(raw)

	t.Run("fmt verbs", func(t *testing.T) {
		for _, verb := range []string{"%s", "%v", "%+v", "%#v", "%d"} {
			assert.Equal(t, secrets.Marker, fmt.Sprintf(verb, secret), verb)
		}
	})

	t.Run("json", func(t *testing.T) {
		b, err := json.Marshal(struct{ Key secrets.Secret }{secret})
		require.NoError(t, err)
		assert.NotContains(t, string(b), raw)
	})

	t.Run("slog", func(t *testing.T) {
		var buf bytes.Buffer
		slog.New(slog.NewJSONHandler(&buf, nil)).Info("config loaded", "secret", secret)
		assert.Contains(t, buf.String(), secrets.Marker)
		assert.NotContains(t, buf.String(), raw)
	})

	t.Run("explicit access", func(t *testing.T) {
		assert.Equal(t, []byte(raw), secret.Value())
		assert.Equal(t, raw, secret.Reveal())
		assert.False(t, secret.IsZero())
		assert.True(t, secrets.New("").IsZero())
	})
}
