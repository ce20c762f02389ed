package transform

import (
	"strings"

	"github.com/hyperifyio/pagefeed/internal/page"
)

// FallbackRule is a configured rule applied to every owner (or only to
// Owners, when set) whose own rules for Host are empty.
type FallbackRule struct {
	Host     string
	Kind     Kind
	Selector string
	Name     string
	Owners   []page.Owner
}

// Fallbacks is a static Policy built from configuration.
type Fallbacks []FallbackRule

// Rules instantiates the configured rules for owner and host.
func (f Fallbacks) Rules(owner page.Owner, host string) []Transform {
	var out []Transform
	for _, r := range f {
		if !strings.EqualFold(r.Host, host) || !r.allows(owner) {
			continue
		}
		t, err := Create(r.Kind, owner, r.Host, r.Selector, r.Name, nil)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r FallbackRule) allows(owner page.Owner) bool {
	if len(r.Owners) == 0 {
		return true
	}
	for _, o := range r.Owners {
		if o == owner {
			return true
		}
	}
	return false
}
