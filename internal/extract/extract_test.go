package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestFromDocument_TitleAndBody(t *testing.T) {
	doc := mustParse(t, `<!doctype html>
	<html>
	  <head><title>
	     Test
	     Page </title><link rel="stylesheet" href="x.css"><style>p{}</style></head>
	  <body>
	    <p>Main paragraph</p>
	    <script>alert(1)</script>
	  </body>
	</html>`)

	res, err := FromDocument(doc, "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "Test Page" {
		t.Fatalf("expected normalized title, got %q", res.Title)
	}
	if !strings.HasPrefix(res.Body, "<body>") || !strings.HasSuffix(res.Body, "</body>") {
		t.Fatalf("expected rendered body element, got %q", res.Body)
	}
	if !strings.Contains(res.Body, "<p>Main paragraph</p>") {
		t.Fatalf("expected paragraph in body: %q", res.Body)
	}
	if strings.Contains(res.Body, "alert") {
		t.Fatalf("script should be removed: %q", res.Body)
	}
}

func TestTitle_Fallback(t *testing.T) {
	doc := mustParse(t, `<html><body>no title</body></html>`)
	if got := Title(doc, "[saved]"); got != "[saved]" {
		t.Fatalf("expected fallback, got %q", got)
	}
	blank := mustParse(t, `<html><head><title>  </title></head></html>`)
	if got := Title(blank, ""); got != "" {
		t.Fatalf("expected empty fallback, got %q", got)
	}
}

func TestBody_StripsNestedElements(t *testing.T) {
	doc := mustParse(t, `<body><div><style>.a{}</style><span>keep</span><script src="a.js"></script></div></body>`)
	body, err := Body(doc)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body != "<body><div><span>keep</span></div></body>" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestBody_NoBodyElementRendersDocument(t *testing.T) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.TextNode, Data: "bare"})
	body, err := Body(doc)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body != "bare" {
		t.Fatalf("expected whole document, got %q", body)
	}
}
