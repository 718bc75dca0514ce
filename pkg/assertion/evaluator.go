// Package assertion evaluates named assertions against captured traffic.
package assertion

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/matcher"
)

// maxActualLen bounds the payload excerpt reported as the actual value.
const maxActualLen = 512

// Validate checks an assertion's type and expression without evaluating it.
func Validate(a domain.Assertion) error {
	switch a.Type {
	case domain.AssertXPath, domain.AssertExists, domain.AssertCount:
		if a.Expression == "" {
			return fmt.Errorf("%s assertion requires an expression", a.Type)
		}
		if _, err := matcher.CompileQuery(a.Expression); err != nil {
			return err
		}
		if a.Type == domain.AssertCount {
			if _, err := expectedCount(a.Expected); err != nil {
				return err
			}
		}
	case domain.AssertEquals:
		if a.Expression != "" {
			if _, err := matcher.CompileQuery(a.Expression); err != nil {
				return err
			}
		}
	case domain.AssertContains:
		if a.Expression == "" && expectedString(a.Expected) == "" {
			return fmt.Errorf("contains assertion requires an expression or expected value")
		}
		if a.Expression != "" && expectedString(a.Expected) != "" {
			if _, err := matcher.CompileQuery(a.Expression); err != nil {
				return err
			}
		}
	case domain.AssertRegex:
		if _, err := regexp.Compile(a.Expression); err != nil {
			return fmt.Errorf("invalid regex %q: %w", a.Expression, err)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// Evaluate checks a against payload. Actual and Expected are always populated.
// Negate inverts the verdict, but evaluation errors always fail.
func Evaluate(a domain.Assertion, payload string) domain.AssertionResult {
	res := domain.AssertionResult{
		AssertionID: a.ID,
		Expected:    expectedString(a.Expected),
	}

	passed, actual, err := evaluate(a, payload)
	res.Actual = truncate(actual)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if a.Negate {
		passed = !passed
		res.Expected = "not " + describeExpected(a)
	} else if res.Expected == "" {
		res.Expected = describeExpected(a)
	}
	res.Passed = passed
	return res
}

func evaluate(a domain.Assertion, payload string) (bool, string, error) {
	switch a.Type {
	case domain.AssertContains:
		want := expectedString(a.Expected)
		if want == "" {
			return strings.Contains(payload, a.Expression), payload, nil
		}
		subject := payload
		if a.Expression != "" {
			v, err := extract(a.Expression, payload)
			if err != nil {
				return false, "", err
			}
			subject = v.First()
		}
		return strings.Contains(subject, want), subject, nil

	case domain.AssertRegex:
		re, err := regexp.Compile(a.Expression)
		if err != nil {
			return false, "", fmt.Errorf("invalid regex %q: %w", a.Expression, err)
		}
		m := re.FindString(payload)
		return re.MatchString(payload), m, nil

	case domain.AssertEquals:
		want := expectedString(a.Expected)
		if a.Expression == "" {
			return payload == want, payload, nil
		}
		v, err := extract(a.Expression, payload)
		if err != nil {
			return false, "", err
		}
		got := strings.TrimSpace(v.First())
		return got == want, got, nil

	case domain.AssertXPath:
		v, err := extract(a.Expression, payload)
		if err != nil {
			return false, "", err
		}
		return v.Truthy(), v.First(), nil

	case domain.AssertExists:
		v, err := extract(a.Expression, payload)
		if err != nil {
			return false, "", err
		}
		found := v.Count() > 0
		return found, strconv.FormatBool(found), nil

	case domain.AssertCount:
		want, err := expectedCount(a.Expected)
		if err != nil {
			return false, "", err
		}
		v, err := extract(a.Expression, payload)
		if err != nil {
			return false, "", err
		}
		if !v.IsSet {
			// count(...) style expressions yield a number.
			if f, perr := strconv.ParseFloat(v.Scalar, 64); perr == nil {
				return f == float64(want), strconv.FormatFloat(f, 'f', -1, 64), nil
			}
		}
		n := v.Count()
		return n == want, strconv.Itoa(n), nil

	default:
		return false, "", fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func extract(expr, payload string) (matcher.Value, error) {
	q, err := matcher.CompileQuery(expr)
	if err != nil {
		return matcher.Value{}, err
	}
	doc, err := matcher.Parse(payload)
	if err != nil {
		return matcher.Value{}, err
	}
	return matcher.Evaluate(q, doc), nil
}

func expectedString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// expectedCount coerces the expected value of a count assertion to a
// non-negative whole number.
func expectedCount(v any) (int, error) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("count assertion expects a whole number, got %v", x)
		}
		n = int(x)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("count assertion expects a whole number, got %q", x)
		}
		n = i
	default:
		return 0, fmt.Errorf("count assertion expects a number, got %T", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("count assertion expects a non-negative number, got %d", n)
	}
	return n, nil
}

func describeExpected(a domain.Assertion) string {
	switch a.Type {
	case domain.AssertXPath, domain.AssertExists:
		return "match for " + a.Expression
	case domain.AssertRegex:
		return "match for /" + a.Expression + "/"
	case domain.AssertContains:
		if s := expectedString(a.Expected); s != "" {
			return s
		}
		return a.Expression
	default:
		return expectedString(a.Expected)
	}
}

func truncate(s string) string {
	if len(s) <= maxActualLen {
		return s
	}
	cut := maxActualLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// FromAssertData converts an inline assert stanza into an Assertion keyed by the stanza id.
func FromAssertData(stanza domain.Stanza, data domain.AssertData) domain.Assertion {
	a := domain.Assertion{
		ID:         stanza.ID,
		Name:       stanza.Description,
		Type:       data.AssertionType,
		Expression: data.Expression,
	}
	if data.Expected != "" {
		a.Expected = data.Expected
	}
	return a
}
