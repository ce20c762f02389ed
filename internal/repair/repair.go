// Package repair rewrites common authoring defects out of raw markup before it
// reaches the structural parser.
package repair

import "regexp"

// Replacement is a single named regexp rewrite.
type Replacement struct {
	Desc        string
	re          *regexp.Regexp
	replacement string
}

// Apply rewrites every non-overlapping match in content.
func (r Replacement) Apply(content string) string {
	return r.re.ReplaceAllString(content, r.replacement)
}

// Order matters: each rule sees the previous rule's output.
var rules = []Replacement{
	{
		Desc:        "javascript",
		re:          regexp.MustCompile(`(?is)<script.*?</script[^>]*>`),
		replacement: "",
	},
	{
		Desc:        "double double-quoted attributes",
		re:          regexp.MustCompile(`(="[^"]+")"+`),
		replacement: "$1",
	},
	{
		Desc:        "unclosed tags",
		re:          regexp.MustCompile(`(<[a-zA-Z]+[^>]*)(<[a-zA-Z]+[^<>]*>)`),
		replacement: "$1>$2",
	},
	{
		Desc:        "unclosed (numerical) attribute values",
		re:          regexp.MustCompile(`(<[^>]*[a-zA-Z]+\s*=\s*"[0-9]+)( [a-zA-Z]+="\w+"|/?>)`),
		replacement: `$1"$2`,
	},
}

// Rules returns the fixed rule sequence in application order.
func Rules() []Replacement {
	out := make([]Replacement, len(rules))
	copy(out, rules)
	return out
}

// Apply runs every rule over content in order.
func Apply(content string) string {
	for _, r := range rules {
		content = r.Apply(content)
	}
	return content
}
