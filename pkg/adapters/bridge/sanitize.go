package bridge

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxPayloadSize is 256KB, well above typical stanzas.
	DefaultMaxPayloadSize = 256 * 1024
	// EnvMaxPayloadSize is the environment variable to override the default.
	EnvMaxPayloadSize = "VIRTUOSO_MAX_PAYLOAD_SIZE"
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("payload contains invalid UTF-8 sequences")
)

// SanitizePayload checks a stanza reported by the transport before it reaches
// cues: it enforces the size limit, validates UTF-8 and strips control
// characters XML does not allow.
func SanitizePayload(payload string) (string, error) {
	limit := maxPayloadSize()
	if len(payload) > limit {
		// Rejected rather than truncated so matchers never see half a stanza.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrPayloadTooLarge, len(payload), limit)
	}

	if !utf8.ValidString(payload) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range payload {
		if unicode.IsControl(r) && !isXMLControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return payload, nil
	}

	var b strings.Builder
	b.Grow(len(payload))
	for _, r := range payload {
		if !unicode.IsControl(r) || isXMLControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isXMLControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxPayloadSize() int {
	if val := os.Getenv(EnvMaxPayloadSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxPayloadSize
}
