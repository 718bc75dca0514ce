package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StanzaType identifies the kind of scripted action.
type StanzaType string

const (
	StanzaConnect    StanzaType = "connect"
	StanzaDisconnect StanzaType = "disconnect"
	StanzaSend       StanzaType = "send"
	StanzaCue        StanzaType = "cue"
	StanzaAssert     StanzaType = "assert"
)

// MatchType selects the Matcher strategy of a cue.
type MatchType string

const (
	MatchContains MatchType = "contains"
	MatchXPath    MatchType = "xpath"
	MatchRegex    MatchType = "regex"
	MatchID       MatchType = "id"
)

// Stanza is one scripted action bound to an account alias.
type Stanza struct {
	ID           string      `json:"id" yaml:"id"`
	Type         StanzaType  `json:"type" yaml:"type"`
	AccountAlias string      `json:"accountAlias" yaml:"accountAlias"`
	Description  string      `json:"description" yaml:"description"`
	Data         StanzaData  `json:"data" yaml:"-"`
	Assertions   []Assertion `json:"assertions,omitempty" yaml:"assertions,omitempty"`
}

// StanzaData is the payload of a Stanza. The set of implementations is closed.
type StanzaData interface {
	StanzaType() StanzaType
	isStanzaData()
}

// ConnectData requests the account to be opened.
type ConnectData struct{}

// DisconnectData requests the account to be closed.
type DisconnectData struct{}

// SendData carries an outbound payload.
type SendData struct {
	XML string `json:"xml" mapstructure:"xml"`
	// GeneratedIDs holds identifiers minted at send time, keyed by role (e.g. "id").
	GeneratedIDs map[string]string `json:"generatedIds,omitempty" mapstructure:"generatedIds"`
}

// CueData is a wait condition on the account's inbound stream.
type CueData struct {
	Description     string    `json:"description" mapstructure:"description"`
	MatchType       MatchType `json:"matchType" mapstructure:"matchType"`
	MatchExpression string    `json:"matchExpression" mapstructure:"matchExpression"`
	// Timeout is in milliseconds and must be positive.
	Timeout      int64  `json:"timeout" mapstructure:"timeout"`
	CorrelatedID string `json:"correlatedId,omitempty" mapstructure:"correlatedId"`
}

// AssertData is an inline assertion over the most recently captured message.
type AssertData struct {
	AssertionType AssertionType `json:"assertionType" mapstructure:"assertionType"`
	Expression    string        `json:"expression" mapstructure:"expression"`
	Expected      string        `json:"expected,omitempty" mapstructure:"expected"`
}

func (ConnectData) StanzaType() StanzaType    { return StanzaConnect }
func (DisconnectData) StanzaType() StanzaType { return StanzaDisconnect }
func (SendData) StanzaType() StanzaType       { return StanzaSend }
func (CueData) StanzaType() StanzaType        { return StanzaCue }
func (AssertData) StanzaType() StanzaType     { return StanzaAssert }

func (ConnectData) isStanzaData()    {}
func (DisconnectData) isStanzaData() {}
func (SendData) isStanzaData()       {}
func (CueData) isStanzaData()        {}
func (AssertData) isStanzaData()     {}

// NewStanzaData returns the zero payload for a stanza type.
func NewStanzaData(t StanzaType) (StanzaData, error) {
	switch t {
	case StanzaConnect:
		return ConnectData{}, nil
	case StanzaDisconnect:
		return DisconnectData{}, nil
	case StanzaSend:
		return SendData{}, nil
	case StanzaCue:
		return CueData{}, nil
	case StanzaAssert:
		return AssertData{}, nil
	default:
		return nil, fmt.Errorf("unknown stanza type %q", t)
	}
}

// DecodeStanzaData converts a generic map (from JSON or YAML) into the typed payload.
// The "type" key of raw is ignored in favour of t.
func DecodeStanzaData(t StanzaType, raw map[string]any) (StanzaData, error) {
	switch t {
	case StanzaConnect:
		return ConnectData{}, nil
	case StanzaDisconnect:
		return DisconnectData{}, nil
	case StanzaSend:
		var d SendData
		if err := decodeInto(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case StanzaCue:
		var d CueData
		if err := decodeInto(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case StanzaAssert:
		var d AssertData
		if err := decodeInto(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown stanza type %q", t)
	}
}

func decodeInto(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode stanza data: %w", err)
	}
	return nil
}

// MarshalJSON writes Data as an object carrying its "type" discriminator.
func (s Stanza) MarshalJSON() ([]byte, error) {
	type alias Stanza
	data := map[string]any{}
	if s.Data != nil {
		b, err := json.Marshal(s.Data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return nil, err
		}
		data["type"] = s.Data.StanzaType()
	}
	return json.Marshal(struct {
		alias
		Data map[string]any `json:"data"`
	}{alias: alias(s), Data: data})
}

// UnmarshalJSON decodes the tagged Data payload.
func (s *Stanza) UnmarshalJSON(b []byte) error {
	type alias Stanza
	var wire struct {
		alias
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*s = Stanza(wire.alias)
	return s.decodeData(wire.Data)
}

// UnmarshalYAML lets compositions be authored in YAML.
func (s *Stanza) UnmarshalYAML(unmarshal func(any) error) error {
	type alias Stanza
	var wire struct {
		alias `yaml:",inline"`
		Data  map[string]any `yaml:"data"`
	}
	if err := unmarshal(&wire); err != nil {
		return err
	}
	*s = Stanza(wire.alias)
	return s.decodeData(wire.Data)
}

func (s *Stanza) decodeData(raw map[string]any) error {
	t := s.Type
	if t == "" {
		if tag, ok := raw["type"].(string); ok {
			t = StanzaType(tag)
			s.Type = t
		}
	}
	if _, err := NewStanzaData(t); err != nil {
		// Left for validation to report as a configuration error.
		s.Data = nil
		return nil
	}
	data, err := DecodeStanzaData(t, raw)
	if err != nil {
		return fmt.Errorf("stanza %q: %w", s.ID, err)
	}
	s.Data = data
	return nil
}
