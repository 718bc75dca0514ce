package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Parse parses a payload into an XML document tree.
func Parse(payload string) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid XML payload: %w", err)
	}
	return doc, nil
}

// Root returns the first element of a parsed document.
func Root(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// ExtractID returns the id attribute of the payload's root element.
func ExtractID(payload string) (string, bool) {
	doc, err := Parse(payload)
	if err != nil {
		return "", false
	}
	root := Root(doc)
	if root == nil {
		return "", false
	}
	for _, attr := range root.Attr {
		if attr.Name.Local == "id" {
			return attr.Value, true
		}
	}
	return "", false
}

// Value is the outcome of evaluating a compiled query against a document.
type Value struct {
	// Nodes holds the string value of every selected node when the query yields a node set.
	Nodes []string
	// Scalar holds the rendered result of string, number and boolean queries.
	Scalar string
	IsSet  bool
	truthy bool
}

// Truthy reports a non-empty node set, a true boolean, a non-zero number or a non-empty string.
func (v Value) Truthy() bool { return v.truthy }

// First returns the first node value or the scalar.
func (v Value) First() string {
	if v.IsSet {
		if len(v.Nodes) == 0 {
			return ""
		}
		return v.Nodes[0]
	}
	return v.Scalar
}

// Count returns the node count, or 1/0 for scalar results.
func (v Value) Count() int {
	if v.IsSet {
		return len(v.Nodes)
	}
	if v.truthy {
		return 1
	}
	return 0
}

// CompileQuery compiles a structural query.
func CompileQuery(expr string) (*xpath.Expr, error) {
	q, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return q, nil
}

// Evaluate runs a compiled query over doc.
func Evaluate(q *xpath.Expr, doc *xmlquery.Node) Value {
	switch res := q.Evaluate(xmlquery.CreateXPathNavigator(doc)).(type) {
	case *xpath.NodeIterator:
		v := Value{IsSet: true}
		for res.MoveNext() {
			v.Nodes = append(v.Nodes, res.Current().Value())
		}
		v.truthy = len(v.Nodes) > 0
		return v
	case bool:
		return Value{Scalar: strconv.FormatBool(res), truthy: res}
	case float64:
		return Value{Scalar: strconv.FormatFloat(res, 'f', -1, 64), truthy: res != 0}
	case string:
		return Value{Scalar: res, truthy: res != ""}
	default:
		s := fmt.Sprint(res)
		return Value{Scalar: s, truthy: s != ""}
	}
}
