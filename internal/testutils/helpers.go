package testutils

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/stretchr/testify/require"
)

// Script builds compositions for tests with deterministic stanza ids (s1, s2, ...).
type Script struct {
	comp domain.Composition
	seq  int
}

// NewScript starts a composition with the given accounts. The jid of each alias is alias@example.com.
func NewScript(id string, aliases ...string) *Script {
	s := &Script{comp: domain.Composition{
		ID:        id,
		Name:      "test " + id,
		Version:   domain.DefaultCompositionVersion,
		Created:   time.Now(),
		Updated:   time.Now(),
		Variables: map[string]string{},
		Tags:      []string{},
	}}
	for _, a := range aliases {
		s.comp.Accounts = append(s.comp.Accounts, domain.AccountReference{Alias: a, JID: a + "@example.com"})
	}
	return s
}

func (s *Script) add(alias string, data domain.StanzaData, assertions ...domain.Assertion) *Script {
	s.seq++
	s.comp.Stanzas = append(s.comp.Stanzas, domain.Stanza{
		ID:           fmt.Sprintf("s%d", s.seq),
		Type:         data.StanzaType(),
		AccountAlias: alias,
		Description:  string(data.StanzaType()),
		Data:         data,
		Assertions:   assertions,
	})
	return s
}

// Connect appends a connect stanza.
func (s *Script) Connect(alias string) *Script { return s.add(alias, domain.ConnectData{}) }

// Disconnect appends a disconnect stanza.
func (s *Script) Disconnect(alias string) *Script { return s.add(alias, domain.DisconnectData{}) }

// Send appends a send stanza.
func (s *Script) Send(alias, xml string, assertions ...domain.Assertion) *Script {
	return s.add(alias, domain.SendData{XML: xml}, assertions...)
}

// Cue appends a cue stanza.
func (s *Script) Cue(alias string, kind domain.MatchType, expr string, timeout time.Duration, assertions ...domain.Assertion) *Script {
	return s.add(alias, domain.CueData{MatchType: kind, MatchExpression: expr, Timeout: timeout.Milliseconds()}, assertions...)
}

// CorrelatedCue appends a cue restricted to replies carrying correlatedID.
func (s *Script) CorrelatedCue(alias string, kind domain.MatchType, expr, correlatedID string, timeout time.Duration) *Script {
	return s.add(alias, domain.CueData{MatchType: kind, MatchExpression: expr, Timeout: timeout.Milliseconds(), CorrelatedID: correlatedID})
}

// Assert appends an inline assert stanza.
func (s *Script) Assert(alias string, kind domain.AssertionType, expr, expected string) *Script {
	return s.add(alias, domain.AssertData{AssertionType: kind, Expression: expr, Expected: expected})
}

// Build returns the composition.
func (s *Script) Build() *domain.Composition {
	c := s.comp
	return &c
}

// TempFile returns a path inside a per-test temporary directory.
func TempFile(t *testing.T, name string) string {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")
	return filepath.Join(dir, name)
}
