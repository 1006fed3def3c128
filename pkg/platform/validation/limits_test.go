package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentry/pkg/domain-errors"
)

// The limits are trust-boundary checks: max passes and max+1 fails.
func TestLimits(t *testing.T) {
	long := strings.Repeat("a", MaxScriptURLLength+1)

	cases := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"params at max", CheckSliceCount("params", MaxTrackParams, MaxTrackParams), ""},
		{"no params", CheckSliceCount("params", 0, MaxTrackParams), ""},
		{"params over max", CheckSliceCount("params", MaxTrackParams+1, MaxTrackParams), "too many params: max 50 allowed"},
		{"email at max", CheckStringLength("email", strings.Repeat("e", MaxEmailLength), MaxEmailLength), ""},
		{"empty email", CheckStringLength("email", "", MaxEmailLength), ""},
		{"email over max", CheckStringLength("email", strings.Repeat("e", MaxEmailLength+1), MaxEmailLength), "email exceeds max length of 254"},
		{"scripts within max", CheckEachStringLength("script", []string{"/a.js", strings.Repeat("a", MaxScriptURLLength)}, MaxScriptURLLength), ""},
		{"nil scripts", CheckEachStringLength("script", nil, MaxScriptURLLength), ""},
		{"second script over max", CheckEachStringLength("script", []string{"/a.js", long, long + "b"}, MaxScriptURLLength), "script 1 exceeds max length of 2048"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.wantMsg == "" {
				assert.NoError(t, tc.err)
				return
			}
			require.Error(t, tc.err)
			assert.True(t, dErrors.HasCode(tc.err, dErrors.CodeValidation))
			assert.Equal(t, tc.wantMsg, tc.err.Error())
		})
	}
}
