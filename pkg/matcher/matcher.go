package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/xpath"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// Result is the verdict of a single match attempt.
type Result struct {
	Matched bool
	// Captured is the correlation value extracted by the strategy (the id, the regex group, the first node).
	Captured string
}

// Matcher is a compiled match strategy.
type Matcher struct {
	kind       domain.MatchType
	expression string
	re         *regexp.Regexp
	query      *xpath.Expr
}

// Compile validates and prepares a strategy.
// Unknown types and malformed expressions are configuration errors and are reported here, never at match time.
func Compile(kind domain.MatchType, expression string) (*Matcher, error) {
	m := &Matcher{kind: kind, expression: expression}
	switch kind {
	case domain.MatchContains:
		if expression == "" {
			return nil, fmt.Errorf("contains expression must not be empty")
		}
	case domain.MatchRegex:
		re, err := regexp.Compile(expression)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", expression, err)
		}
		m.re = re
	case domain.MatchXPath:
		q, err := CompileQuery(expression)
		if err != nil {
			return nil, err
		}
		m.query = q
	case domain.MatchID:
		if expression == "" {
			return nil, fmt.Errorf("id expression must not be empty")
		}
	default:
		return nil, fmt.Errorf("unknown match type %q", kind)
	}
	return m, nil
}

// Type returns the strategy kind.
func (m *Matcher) Type() domain.MatchType { return m.kind }

// Match applies the strategy to a raw inbound payload.
// Payloads that cannot be parsed never match structural strategies.
func (m *Matcher) Match(payload string) Result {
	switch m.kind {
	case domain.MatchContains:
		if strings.Contains(payload, m.expression) {
			return Result{Matched: true, Captured: m.expression}
		}
	case domain.MatchRegex:
		loc := m.re.FindStringSubmatch(payload)
		if loc == nil {
			return Result{}
		}
		if len(loc) > 1 {
			return Result{Matched: true, Captured: loc[1]}
		}
		return Result{Matched: true, Captured: loc[0]}
	case domain.MatchID:
		id, ok := ExtractID(payload)
		if ok && id == m.expression {
			return Result{Matched: true, Captured: id}
		}
	case domain.MatchXPath:
		doc, err := Parse(payload)
		if err != nil {
			return Result{}
		}
		v := Evaluate(m.query, doc)
		if v.Truthy() {
			return Result{Matched: true, Captured: v.First()}
		}
	}
	return Result{}
}

// Cue compiles the matcher of a cue stanza.
func Cue(data domain.CueData) (*Matcher, error) {
	return Compile(data.MatchType, data.MatchExpression)
}
