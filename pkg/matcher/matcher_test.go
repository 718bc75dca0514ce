package matcher_test

import (
	"testing"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chat = `<message from="bob@example.com/res" to="alice@example.com" type="chat" id="msg_1"><body>hello there</body></message>`

func TestCompile_RejectsBadConfiguration(t *testing.T) {
	tests := []struct {
		name string
		kind domain.MatchType
		expr string
	}{
		{"unknown type", domain.MatchType("glob"), "*"},
		{"bad regex", domain.MatchRegex, "(unclosed"},
		{"bad xpath", domain.MatchXPath, "//message[@id="},
		{"empty contains", domain.MatchContains, ""},
		{"empty id", domain.MatchID, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := matcher.Compile(tt.kind, tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		kind     domain.MatchType
		expr     string
		payload  string
		matched  bool
		captured string
	}{
		{"contains hit", domain.MatchContains, "hello", chat, true, "hello"},
		{"contains miss", domain.MatchContains, "goodbye", chat, false, ""},
		{"regex partial match", domain.MatchRegex, `hel+o`, chat, true, "hello"},
		{"regex captures group", domain.MatchRegex, `id="(msg_\d+)"`, chat, true, "msg_1"},
		{"regex miss", domain.MatchRegex, `^<iq`, chat, false, ""},
		{"id hit", domain.MatchID, "msg_1", chat, true, "msg_1"},
		{"id miss", domain.MatchID, "msg_2", chat, false, ""},
		{"id on malformed payload", domain.MatchID, "msg_1", `<message id="msg_1"`, false, ""},
		{"xpath node set", domain.MatchXPath, "//body", chat, true, "hello there"},
		{"xpath attribute predicate", domain.MatchXPath, "/message[@type='chat']", chat, true, "hello there"},
		{"xpath empty set", domain.MatchXPath, "//subject", chat, false, ""},
		{"xpath boolean", domain.MatchXPath, "count(//body) = 1", chat, true, "true"},
		{"xpath on malformed payload", domain.MatchXPath, "//body", "not xml <", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := matcher.Compile(tt.kind, tt.expr)
			require.NoError(t, err)

			res := m.Match(tt.payload)
			assert.Equal(t, tt.matched, res.Matched)
			assert.Equal(t, tt.captured, res.Captured)
		})
	}
}

func TestExtractID(t *testing.T) {
	id, ok := matcher.ExtractID(`<?xml version="1.0"?><iq type="result" id="ping_1"/>`)
	assert.True(t, ok)
	assert.Equal(t, "ping_1", id)

	_, ok = matcher.ExtractID(`<presence/>`)
	assert.False(t, ok)
}
