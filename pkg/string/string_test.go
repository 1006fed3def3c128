package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  Jane Doe  ", "Jane Doe"},
		{"collapses inner whitespace", "Jane \t\n  Doe", "Jane Doe"},
		{"strips angle brackets", "<script>Jane</script>", "scriptJane/script"},
		{"brackets then spaces", "Jane < > Doe", "Jane Doe"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "email", ToSnakeCase("Email"))
	assert.Equal(t, "request_id", ToSnakeCase("RequestID"))
	assert.Equal(t, "valid_for", ToSnakeCase("ValidFor"))
}
