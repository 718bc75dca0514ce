package domain

import (
	"encoding/json"
	"time"
)

// DefaultCompositionVersion is stamped on freshly recorded compositions.
const DefaultCompositionVersion = "1.0.0"

// Composition is a saved, ordered script of protocol actions across named accounts.
// The order of Stanzas is the authoritative execution order.
type Composition struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Version     string             `json:"version" yaml:"version"`
	Created     time.Time          `json:"created" yaml:"created"`
	Updated     time.Time          `json:"updated" yaml:"updated"`
	Accounts    []AccountReference `json:"accounts" yaml:"accounts"`
	Stanzas     []Stanza           `json:"stanzas" yaml:"stanzas"`
	Movements   []Movement         `json:"movements,omitempty" yaml:"movements,omitempty"`
	Variables   map[string]string  `json:"variables" yaml:"variables"`
	Tags        []string           `json:"tags" yaml:"tags"`
	Author      string             `json:"author,omitempty" yaml:"author,omitempty"`
}

// Movement groups stanzas for presentation. It has no execution semantics.
type Movement struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	StanzaIDs   []string `json:"stanzaIds" yaml:"stanzaIds"`
}

// Account returns the reference registered under alias.
func (c *Composition) Account(alias string) (AccountReference, bool) {
	for _, a := range c.Accounts {
		if a.Alias == alias {
			return a, true
		}
	}
	return AccountReference{}, false
}

// StanzasFor returns the stanzas of one account, in composition order.
func (c *Composition) StanzasFor(alias string) []Stanza {
	var out []Stanza
	for _, s := range c.Stanzas {
		if s.AccountAlias == alias {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy, used as the immutable snapshot of a playback run.
func (c *Composition) Clone() (*Composition, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Composition
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EntityID implements Entity.
func (c *Composition) EntityID() string { return c.ID }

// SetEntityID implements Entity.
func (c *Composition) SetEntityID(id string) { c.ID = id }

// Stamps implements Entity.
func (c *Composition) Stamps() (created, updated time.Time) { return c.Created, c.Updated }

// Stamp implements Entity.
func (c *Composition) Stamp(created, updated time.Time) {
	c.Created = created
	c.Updated = updated
}
