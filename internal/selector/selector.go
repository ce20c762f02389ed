// Package selector evaluates rule selectors against parsed documents. CSS
// selectors cover the common cases (tag, class, attribute equality,
// descendant); expressions starting with "/" or "(" are treated as XPath.
package selector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrBadSelector reports an expression that does not compile.
var ErrBadSelector = errors.New("bad selector")

// Select returns the elements matching expr in document order. No match is
// an empty result, not an error.
func Select(doc *html.Node, expr string) ([]*html.Node, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrBadSelector)
	}
	if doc == nil {
		return nil, nil
	}
	if IsXPath(expr) {
		nodes, err := htmlquery.QueryAll(doc, expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadSelector, expr, err)
		}
		return elementsOnly(nodes), nil
	}
	m, err := cascadia.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadSelector, expr, err)
	}
	return goquery.NewDocumentFromNode(doc).FindMatcher(m).Nodes, nil
}

// IsXPath reports whether expr is evaluated as XPath rather than CSS.
func IsXPath(expr string) bool {
	return strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "(")
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// XPath can select attribute or text nodes; rules only act on elements in
// the tree. htmlquery wraps attribute results in detached element nodes.
func elementsOnly(nodes []*html.Node) []*html.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode && n.Parent != nil {
			out = append(out, n)
		}
	}
	return out
}
