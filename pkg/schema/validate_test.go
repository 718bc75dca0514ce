package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/internal/testutils"
	"github.com/aretw0/virtuoso/pkg/domain"
)

func TestValidateComposition_Valid(t *testing.T) {
	comp := testutils.NewScript("c1", "alice", "bob").
		Connect("alice").
		Connect("bob").
		Send("alice", `<message to="bob@example.com"><body>hi</body></message>`).
		Cue("bob", domain.MatchXPath, "//body", time.Second).
		Assert("bob", domain.AssertEquals, "//body", "hi").
		Build()

	if err := ValidateComposition(comp); err != nil {
		t.Fatalf("ValidateComposition() error = %v, want nil", err)
	}
}

func TestValidateComposition_ReportsEveryDefect(t *testing.T) {
	comp := testutils.NewScript("c1", "alice").
		Connect("carol").
		Cue("alice", domain.MatchType("glob"), "*", time.Second).
		Cue("alice", domain.MatchRegex, "(", time.Second).
		Cue("alice", domain.MatchContains, "x", 0).
		Assert("alice", domain.AssertionType("count"), "//item", "1").
		Build()
	comp.Accounts = append(comp.Accounts, domain.AccountReference{Alias: "alice", JID: "dup@example.com"})
	comp.Stanzas = append(comp.Stanzas, comp.Stanzas[0])

	err := ValidateComposition(comp)
	if err == nil {
		t.Fatal("ValidateComposition() should fail")
	}

	errs := ValidationErrors(err)
	wantKeys := []string{
		"accounts[1].alias",
		"stanzas[0].accountAlias",
		"stanzas[1].data.matchExpression",
		"stanzas[2].data.matchExpression",
		"stanzas[3].data.timeout",
		"stanzas[4].data.assertionType",
		"stanzas[5].id",
	}
	for _, key := range wantKeys {
		found := false
		for _, e := range errs {
			var cfg *ConfigurationError
			if errors.As(e, &cfg) && cfg.Key == key {
				found = true
			}
		}
		if !found {
			t.Errorf("missing configuration error for %s in:\n%v", key, err)
		}
	}
	if !IsConfigurationError(err) {
		t.Error("IsConfigurationError() = false, want true")
	}
}

func TestValidateComposition_UnknownStanzaType(t *testing.T) {
	comp := testutils.NewScript("c1", "alice").Build()
	comp.Stanzas = append(comp.Stanzas, domain.Stanza{ID: "x", Type: "teleport", AccountAlias: "alice"})

	err := ValidateComposition(comp)
	if err == nil || !strings.Contains(err.Error(), "unknown stanza type") {
		t.Fatalf("expected unknown stanza type error, got %v", err)
	}
}

func TestValidateComposition_BadAttachedAssertion(t *testing.T) {
	comp := testutils.NewScript("c1", "alice").
		Send("alice", "<presence/>", domain.Assertion{ID: "a1", Type: domain.AssertXPath, Expression: "//["}).
		Build()

	err := ValidateComposition(comp)
	if err == nil || !strings.Contains(err.Error(), "stanzas[0].assertions[0]") {
		t.Fatalf("expected attached assertion error, got %v", err)
	}
}
