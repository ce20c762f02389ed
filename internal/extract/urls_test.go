package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestBaseHref(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://h.com/a/b/c", "http://h.com/a/b/"},
		{"http://h.com/a", "http://h.com/a/"},
		{"http://h.com", "http://h.com/"},
		{"http://h.com/a/b/", "http://h.com/a/b/"},
	}
	for _, c := range cases {
		if got := BaseHref(c.in); got != c.want {
			t.Fatalf("BaseHref(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	cases := []struct{ ref, base, want string }{
		{"/x", "http://h.com/a/b/", "http://h.com/x"},
		{"x", "http://h.com/a/", "http://h.com/a/x"},
		{"http://other.com/y", "http://h.com/a/", "http://other.com/y"},
		{"mailto:someone@h.com", "http://h.com/", "mailto:someone@h.com"},
		{"//cdn.h.com/i.png", "https://h.com/a/", "https://cdn.h.com/i.png"},
		{"../up", "http://h.com/a/", "http://h.com/a/../up"},
		{"1:2", "http://h.com/", "http://h.com/1:2"},
	}
	for _, c := range cases {
		if got := AbsoluteURL(c.ref, c.base); got != c.want {
			t.Fatalf("AbsoluteURL(%q, %q) = %q, want %q", c.ref, c.base, got, c.want)
		}
	}
}

func TestAbsolutize_RewritesLinksAndImages(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<body>
		<a href="/root">r</a><a href="rel">l</a><a name="anchor">n</a>
		<img src="pic.png"><img src="http://x.com/p.png"></body>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	Absolutize(doc, "http://h.com/dir/")
	body, err := Body(doc)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	for _, want := range []string{
		`href="http://h.com/root"`,
		`href="http://h.com/dir/rel"`,
		`<a name="anchor">`,
		`src="http://h.com/dir/pic.png"`,
		`src="http://x.com/p.png"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %q", want, body)
		}
	}
}
