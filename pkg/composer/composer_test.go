package composer_test

import (
	"testing"
	"time"

	"github.com/aretw0/virtuoso/pkg/composer"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.AccountReference{Alias: "alice", JID: "alice@example.com"}
	bob   = domain.AccountReference{Alias: "bob", JID: "bob@example.com"}
)

func stanza(id, alias string, data domain.StanzaData) domain.Stanza {
	return domain.Stanza{ID: id, Type: data.StanzaType(), AccountAlias: alias, Data: data}
}

func TestReduce_StartAddStop(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	s := composer.Reduce(composer.Initial(), composer.Start{At: now})
	require.True(t, s.Recording)
	assert.Equal(t, now, s.StartedAt)

	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s2", "bob", domain.SendData{XML: "<a/>"}), Account: &bob})

	comp, ok := composer.Build(s, composer.Meta{}, now)
	require.True(t, ok)
	assert.Equal(t, "Composition 2024-01-02 03:04:05", comp.Name)
	assert.Equal(t, domain.DefaultCompositionVersion, comp.Version)
	assert.Regexp(t, `^comp_`, comp.ID)
	require.Len(t, comp.Stanzas, 2)
	assert.Equal(t, "s1", comp.Stanzas[0].ID)
	assert.Equal(t, "s2", comp.Stanzas[1].ID)
	assert.Equal(t, []domain.AccountReference{alice, bob}, comp.Accounts)
	assert.NotNil(t, comp.Variables)
	assert.NotNil(t, comp.Tags)

	s = composer.Reduce(s, composer.Stop{})
	assert.False(t, s.Recording)
	_, ok = composer.Build(s, composer.Meta{}, now)
	assert.False(t, ok, "a stopped recorder builds nothing")
}

func TestReduce_StartWhileRecordingIsNoop(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.Start{At: time.Unix(1, 0)})
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})

	again := composer.Reduce(s, composer.Start{At: time.Unix(2, 0)})
	assert.Equal(t, s, again)
}

func TestReduce_AddWhileIdleIsIgnored(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})
	assert.Equal(t, composer.Initial(), s)
}

func TestReduce_AccountsTrackedOnce(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.Start{})
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})
	renamed := domain.AccountReference{Alias: "alice", JID: "other@example.com"}
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s2", "alice", domain.DisconnectData{}), Account: &renamed})

	require.Len(t, s.Accounts, 1)
	assert.Equal(t, "alice@example.com", s.Accounts[0].JID, "first reference wins")
}

func TestReduce_CancelResets(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.Start{At: time.Now()})
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})

	assert.Equal(t, composer.Initial(), composer.Reduce(s, composer.Cancel{}))
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.Start{})
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})
	before := len(s.Stanzas)

	_ = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s2", "alice", domain.ConnectData{}), Account: &alice})
	assert.Len(t, s.Stanzas, before)
}

func TestBuild_EmptyRecording(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.Start{})
	_, ok := composer.Build(s, composer.Meta{Name: "x"}, time.Now())
	assert.False(t, ok)
}

func TestBuild_UsesMeta(t *testing.T) {
	s := composer.Reduce(composer.Initial(), composer.Start{})
	s = composer.Reduce(s, composer.AddStanza{Stanza: stanza("s1", "alice", domain.ConnectData{}), Account: &alice})

	comp, ok := composer.Build(s, composer.Meta{Name: "login", Description: "d", Author: "ops", Tags: []string{"smoke"}}, time.Now())
	require.True(t, ok)
	assert.Equal(t, "login", comp.Name)
	assert.Equal(t, "d", comp.Description)
	assert.Equal(t, "ops", comp.Author)
	assert.Equal(t, []string{"smoke"}, comp.Tags)
}
