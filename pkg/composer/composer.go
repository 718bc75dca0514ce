// Package composer records operator actions into a Composition.
//
// The core is a pure reducer: Reduce never mutates its input and always returns
// a new State. Recorder wraps it for concurrent callers and can observe the
// command/event boundary.
package composer

import (
	"slices"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// State is the recording state machine: Idle when Recording is false.
type State struct {
	Recording bool
	StartedAt time.Time
	Stanzas   []domain.Stanza
	// Accounts are kept in order of first reference.
	Accounts []domain.AccountReference
}

// Initial returns the Idle state.
func Initial() State {
	return State{}
}

// Action is an input of the reducer. The set of implementations is closed.
type Action interface {
	isAction()
}

// Start enters Recording with an empty script.
type Start struct {
	At time.Time
}

// AddStanza appends a stanza. Account, when set, registers the alias the first time it is seen.
type AddStanza struct {
	Stanza  domain.Stanza
	Account *domain.AccountReference
}

// Stop leaves Recording and keeps the recorded script for inspection.
type Stop struct{}

// Cancel discards everything.
type Cancel struct{}

func (Start) isAction()     {}
func (AddStanza) isAction() {}
func (Stop) isAction()      {}
func (Cancel) isAction()    {}

// Reduce applies a to s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Start:
		if s.Recording {
			return s
		}
		return State{Recording: true, StartedAt: a.At}

	case AddStanza:
		if !s.Recording {
			return s
		}
		next := s
		next.Stanzas = append(slices.Clone(s.Stanzas), a.Stanza)
		if a.Account != nil && !s.tracks(a.Account.Alias) {
			next.Accounts = append(slices.Clone(s.Accounts), *a.Account)
		}
		return next

	case Stop:
		next := s
		next.Recording = false
		return next

	case Cancel:
		return Initial()

	default:
		return s
	}
}

func (s State) tracks(alias string) bool {
	return slices.ContainsFunc(s.Accounts, func(a domain.AccountReference) bool {
		return a.Alias == alias
	})
}

// Meta is the operator-supplied metadata of a new Composition.
type Meta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
}

// Build materializes the recorded script.
// It reports false when not recording or when nothing was recorded.
func Build(s State, meta Meta, now time.Time) (*domain.Composition, bool) {
	if !s.Recording || len(s.Stanzas) == 0 {
		return nil, false
	}

	name := meta.Name
	if name == "" {
		name = "Composition " + now.Format("2006-01-02 15:04:05")
	}
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}

	return &domain.Composition{
		ID:          domain.NewID(domain.PrefixComposition),
		Name:        name,
		Description: meta.Description,
		Version:     domain.DefaultCompositionVersion,
		Created:     now,
		Updated:     now,
		Accounts:    slices.Clone(s.Accounts),
		Stanzas:     slices.Clone(s.Stanzas),
		Variables:   map[string]string{},
		Tags:        slices.Clone(tags),
		Author:      meta.Author,
	}, true
}
