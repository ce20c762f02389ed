// Package extract derives the stored representation of a page from a parsed
// document: its title, its cleaned body fragment, and links made absolute
// against the page's base href.
package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/pagefeed/internal/textutil"
)

// Result is what a page keeps from a successfully parsed document.
type Result struct {
	Title string
	Body  string
}

// FromDocument extracts title and body. The document is mutated: stripped
// elements are gone afterwards.
func FromDocument(doc *html.Node, fallbackTitle string) (Result, error) {
	title := Title(doc, fallbackTitle)
	body, err := Body(doc)
	if err != nil {
		return Result{}, err
	}
	return Result{Title: title, Body: body}, nil
}

// Title returns the whitespace-normalized text of the first <title> element,
// or fallback when there is none or it is blank.
func Title(doc *html.Node, fallback string) string {
	t := findFirst(doc, "title")
	if t == nil {
		return fallback
	}
	title := textutil.NormalizeSpaces(textOf(t))
	if title == "" {
		return fallback
	}
	return title
}

// Body removes script, link and style elements and renders the <body>
// element, or the whole document when there is no body.
func Body(doc *html.Node) (string, error) {
	removeAll(doc, "script", "link", "style")
	root := findFirst(doc, "body")
	if root == nil {
		root = doc
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// removeAll detaches every element whose tag is in tags. Matching subtrees
// are dropped whole, so nested matches need no separate visit.
func removeAll(n *html.Node, tags ...string) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && hasTag(c, tags) {
			n.RemoveChild(c)
			continue
		}
		removeAll(c, tags...)
	}
}

func hasTag(n *html.Node, tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(n.Data, t) {
			return true
		}
	}
	return false
}
