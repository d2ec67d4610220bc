package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tap-terminal/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"colon separated", "04:5B:07:0A:FD:75:80", "045B070AFD7580"},
		{"lowercase colon separated", "04:5b:07:0a:fd:75:80", "045B070AFD7580"},
		{"already canonical", "045B070AFD7580", "045B070AFD7580"},
		{"lowercase no separators", "045b070afd7580", "045B070AFD7580"},
		{"single octet", "AB", "AB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"04:5B:07:0A:FD:75:80", "ab:cd", "045B070AFD7580", "00"}

	for _, raw := range inputs {
		once, err := Normalize(raw)
		require.NoError(t, err)

		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"not-hex!!",
		"045B070AFD758",    // odd length
		"04::5B",           // doubled separator
		":045B",            // leading separator
		"045B:",            // trailing separator
		"04 5B",            // whitespace
		"04;5B",            // wrong separator
		"https://evil/x",   // injected URL
		"GG:HH",            // non-hex pairs
	}

	for _, raw := range inputs {
		_, err := Normalize(raw)
		require.Error(t, err, "input %q should be rejected", raw)

		var serr *models.SessionError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, models.ErrMalformedCredential, serr.Kind)
	}
}
