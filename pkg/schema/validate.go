package schema

import (
	"fmt"
	"slices"

	"github.com/aretw0/virtuoso/pkg/assertion"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/matcher"
)

// ValidateComposition checks c for configuration errors.
// Returns an *AggregateError with all failures found, or nil.
func ValidateComposition(c *domain.Composition) error {
	var errs []error
	add := func(key, reason string, value any) {
		errs = append(errs, &ConfigurationError{Key: key, Reason: reason, Value: value})
	}

	if c == nil {
		return &AggregateError{Errors: []error{&ConfigurationError{Key: "composition", Reason: "required"}}}
	}

	aliases := make(map[string]bool, len(c.Accounts))
	for i, acc := range c.Accounts {
		key := fmt.Sprintf("accounts[%d].alias", i)
		if acc.Alias == "" {
			add(key, "required", nil)
			continue
		}
		if aliases[acc.Alias] {
			add(key, "duplicate alias", acc.Alias)
		}
		aliases[acc.Alias] = true
	}

	stanzaIDs := make(map[string]bool, len(c.Stanzas))
	for i, st := range c.Stanzas {
		prefix := fmt.Sprintf("stanzas[%d]", i)
		if st.ID == "" {
			add(prefix+".id", "required", nil)
		} else if stanzaIDs[st.ID] {
			add(prefix+".id", "duplicate stanza id", st.ID)
		}
		stanzaIDs[st.ID] = true

		if !aliases[st.AccountAlias] {
			add(prefix+".accountAlias", "references an unknown account", st.AccountAlias)
		}

		errs = append(errs, validateData(prefix, st)...)

		for j, a := range st.Assertions {
			if err := assertion.Validate(a); err != nil {
				add(fmt.Sprintf("%s.assertions[%d]", prefix, j), err.Error(), a.Type)
			}
		}
	}

	for i, mv := range c.Movements {
		for _, id := range mv.StanzaIDs {
			if !stanzaIDs[id] {
				add(fmt.Sprintf("movements[%d].stanzaIds", i), "references an unknown stanza", id)
			}
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func validateData(prefix string, st domain.Stanza) []error {
	var errs []error
	add := func(key, reason string, value any) {
		errs = append(errs, &ConfigurationError{Key: prefix + key, Reason: reason, Value: value})
	}

	if st.Data == nil {
		add(".type", "unknown stanza type", st.Type)
		return errs
	}
	if st.Data.StanzaType() != st.Type {
		add(".data.type", fmt.Sprintf("does not match stanza type %q", st.Type), st.Data.StanzaType())
		return errs
	}

	switch d := st.Data.(type) {
	case domain.ConnectData, domain.DisconnectData:
	case domain.SendData:
		if d.XML == "" {
			add(".data.xml", "required", nil)
		}
	case domain.CueData:
		if d.Timeout <= 0 {
			add(".data.timeout", "an explicit positive timeout (ms) is required", d.Timeout)
		}
		if _, err := matcher.Cue(d); err != nil {
			add(".data.matchExpression", err.Error(), d.MatchType)
		}
	case domain.AssertData:
		if !slices.Contains(domain.InlineAssertionTypes, d.AssertionType) {
			add(".data.assertionType", "unknown assertion type", d.AssertionType)
			break
		}
		a := assertion.FromAssertData(st, d)
		if err := assertion.Validate(a); err != nil {
			add(".data.expression", err.Error(), d.Expression)
		}
	default:
		add(".data", "unsupported stanza data", fmt.Sprintf("%T", d))
	}
	return errs
}
