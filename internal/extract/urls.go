package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// BaseHref returns the directory-level URL used to resolve relative
// references: anything past "scheme://host" loses its last path segment, and
// the result always ends in a slash.
func BaseHref(rawURL string) string {
	parts := strings.Split(rawURL, "/")
	// "http:", "", "host" are the first three parts
	if len(parts) > 3 {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "/") + "/"
}

// AbsoluteURL resolves ref against baseHref. References that already carry a
// scheme are returned unchanged, network-path ones (//host/p) get baseHref's
// scheme, root-relative ones its scheme and host, and everything else is
// appended to baseHref.
func AbsoluteURL(ref, baseHref string) string {
	if hasScheme(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		base, err := url.Parse(baseHref)
		if err != nil || base.Scheme == "" {
			return ref
		}
		if strings.HasPrefix(ref, "//") {
			return base.Scheme + ":" + ref
		}
		return base.Scheme + "://" + base.Host + ref
	}
	return baseHref + ref
}

// Absolutize rewrites every a[href] and img[src] in place.
func Absolutize(doc *html.Node, baseHref string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "a":
				rewriteAttr(n, "href", baseHref)
			case "img":
				rewriteAttr(n, "src", baseHref)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func rewriteAttr(n *html.Node, key, baseHref string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && strings.EqualFold(n.Attr[i].Key, key) {
			n.Attr[i].Val = AbsoluteURL(n.Attr[i].Val, baseHref)
			return
		}
	}
}

// hasScheme reports whether ref starts with a URI scheme followed by ':'.
func hasScheme(ref string) bool {
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return false
			}
		case c == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}
