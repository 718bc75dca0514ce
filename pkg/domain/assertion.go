package domain

// AssertionType selects how an assertion inspects its context value.
type AssertionType string

const (
	AssertXPath    AssertionType = "xpath"
	AssertContains AssertionType = "contains"
	AssertRegex    AssertionType = "regex"
	AssertEquals   AssertionType = "equals"
	AssertExists   AssertionType = "exists"
	AssertCount    AssertionType = "count"
)

// InlineAssertionTypes lists the types accepted by an "assert" stanza.
var InlineAssertionTypes = []AssertionType{AssertXPath, AssertContains, AssertRegex, AssertEquals}

// Assertion is a named check attachable to any Stanza.
type Assertion struct {
	ID         string        `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Type       AssertionType `json:"type" yaml:"type"`
	Expression string        `json:"expression" yaml:"expression"`
	// Expected is a string, number or boolean.
	Expected any  `json:"expected" yaml:"expected"`
	Negate   bool `json:"negate,omitempty" yaml:"negate,omitempty"`
}

// AssertionResult reports a single evaluation, including actual vs expected detail.
type AssertionResult struct {
	AssertionID string `json:"assertionId"`
	Passed      bool   `json:"passed"`
	Actual      string `json:"actual,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Error       string `json:"error,omitempty"`
}
