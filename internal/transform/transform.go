// Package transform holds user rules that rewrite a saved page once it has
// been fetched, and the engine that applies them in order.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagefeed/internal/extract"
	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/selector"
)

// Kind discriminates the rule variants.
type Kind string

const (
	KindFollow Kind = "follow"
	KindDelete Kind = "delete"
	KindSelect Kind = "select"
)

var (
	ErrUnknownKind = errors.New("unknown transform kind")
	ErrInvalid     = errors.New("invalid transform")
	ErrNoLinks     = errors.New("no links found")
	ErrNoDocument  = errors.New("page has no document")
)

// Loader runs Fetch, Parse and Extract for a URL.
type Loader interface {
	Load(ctx context.Context, url string) (page.Contents, error)
}

// Action is the variant-specific part of a rule. The set of variants is
// closed: Follow, Delete and Select.
type Action interface {
	Kind() Kind
	apply(ctx context.Context, l Loader, p *page.Page) error
}

// Follow replaces the page with the target of the first link matching
// Selector.
type Follow struct {
	Selector string
}

// Delete is reserved for removing matched elements. It does nothing yet.
type Delete struct {
	Selector string
}

// Select is reserved for keeping only matched elements. It does nothing yet.
type Select struct {
	Selector string
}

func (Follow) Kind() Kind { return KindFollow }
func (Delete) Kind() Kind { return KindDelete }
func (Select) Kind() Kind { return KindSelect }

func (f Follow) apply(ctx context.Context, l Loader, p *page.Page) error {
	doc, err := p.Document()
	if err != nil {
		return fmt.Errorf("parse page content: %w", err)
	}
	if doc == nil {
		return ErrNoDocument
	}
	links, err := selector.Select(doc, f.Selector)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return ErrNoLinks
	}
	href, ok := selector.Attr(links[0], "href")
	if !ok || strings.TrimSpace(href) == "" {
		return fmt.Errorf("%w: first match has no href", ErrNoLinks)
	}
	target := extract.AbsoluteURL(strings.TrimSpace(href), p.Origin())
	log.Info().Str("url", target).Str("page", p.URL).Msg("replacing with contents from followed link")
	c, err := l.Load(ctx, target)
	if err != nil {
		return err
	}
	c.Apply(p)
	return nil
}

func (Delete) apply(context.Context, Loader, *page.Page) error { return nil }
func (Select) apply(context.Context, Loader, *page.Page) error { return nil }

// NewAction builds the variant named by kind.
func NewAction(kind Kind, sel string) (Action, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindFollow:
		return Follow{Selector: sel}, nil
	case KindDelete:
		return Delete{Selector: sel}, nil
	case KindSelect:
		return Select{Selector: sel}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Transform is a stored rule: where it applies, in what order, and what it
// does.
type Transform struct {
	Key       string
	Name      string
	HostMatch string
	Owner     page.Owner
	// Index orders rules for the same host; nil sorts after every value.
	Index  *int
	Action Action
}

// Create builds and validates a rule from its kind discriminator.
func Create(kind Kind, owner page.Owner, hostMatch, sel, name string, index *int) (Transform, error) {
	a, err := NewAction(kind, sel)
	if err != nil {
		return Transform{}, err
	}
	t := Transform{
		Name:      name,
		HostMatch: strings.ToLower(strings.TrimSpace(hostMatch)),
		Owner:     owner,
		Index:     index,
		Action:    a,
	}
	return t, t.Validate()
}

// Kind returns the variant discriminator.
func (t Transform) Kind() Kind {
	if t.Action == nil {
		return ""
	}
	return t.Action.Kind()
}

// Selector returns the variant's selector expression.
func (t Transform) Selector() string {
	switch a := t.Action.(type) {
	case Follow:
		return a.Selector
	case Delete:
		return a.Selector
	case Select:
		return a.Selector
	}
	return ""
}

// Validate checks the fields every rule needs plus the Follow selector.
func (t Transform) Validate() error {
	switch {
	case t.Action == nil:
		return fmt.Errorf("%w: missing action", ErrInvalid)
	case strings.TrimSpace(t.HostMatch) == "":
		return fmt.Errorf("%w: host_match is required", ErrInvalid)
	case t.Owner == "":
		return fmt.Errorf("%w: owner is required", ErrInvalid)
	case t.Kind() == KindFollow && strings.TrimSpace(t.Selector()) == "":
		return fmt.Errorf("%w: selector is required for follow", ErrInvalid)
	}
	return nil
}

func (t Transform) String() string {
	if t.Name != "" {
		return fmt.Sprintf("%s(%s)", t.Kind(), t.Name)
	}
	return string(t.Kind())
}

// TransformError wraps a failure raised while applying a rule.
type TransformError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s failed: %v", e.Kind, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
