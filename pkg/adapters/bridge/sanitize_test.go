package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePayload_SizeLimit(t *testing.T) {
	t.Setenv(EnvMaxPayloadSize, "64")

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", 63, false},
		{"exact limit", 64, false},
		{"over limit", 65, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizePayload(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPayloadTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizePayload_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv(EnvMaxPayloadSize, "lots")
	assert.Equal(t, DefaultMaxPayloadSize, maxPayloadSize())
}

func TestSanitizePayload_ControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "<message><body>hi</body></message>", "<message><body>hi</body></message>"},
		{"whitespace kept", "<a>\n\t\r</a>", "<a>\n\t\r</a>"},
		{"null stripped", "<a>x\x00y</a>", "<a>xy</a>"},
		{"escape stripped", "<a>\x1b[31mred</a>", "<a>[31mred</a>"},
		{"bell stripped", "<a>\a</a>", "<a></a>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePayload(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizePayload_InvalidUTF8(t *testing.T) {
	_, err := SanitizePayload("<a>\xff</a>")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
