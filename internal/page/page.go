// Package page holds the saved-page record and the pipeline that fills it:
// fetch, parse with fallbacks, and extract title and body.
package page

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hyperifyio/pagefeed/internal/extract"
)

// DefaultTitle is used when a page has no usable title or failed to load.
const DefaultTitle = "[pagefeed saved item]"

// Owner identifies whoever saved a record. Its meaning belongs to the
// identity layer; here it only scopes lookups.
type Owner string

// State is where a page sits in its fetch lifecycle.
type State int

const (
	Empty State = iota
	FetchedError
	FetchedOK
)

func (s State) String() string {
	switch s {
	case FetchedError:
		return "fetched-error"
	case FetchedOK:
		return "fetched-ok"
	default:
		return "empty"
	}
}

// Page is one saved web document. A failed page keeps both its Error and a
// best-effort Content, so State is derived from Error and FetchedAt rather
// than from which strings are empty.
type Page struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	RawContent []byte    `json:"-"`
	Content    string    `json:"content"`
	Title      string    `json:"title"`
	Error      string    `json:"error,omitempty"`
	Owner      Owner     `json:"owner"`
	FetchedAt  time.Time `json:"fetched_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// New returns an unfetched page.
func New(owner Owner, rawURL string) *Page {
	return &Page{URL: rawURL, Owner: owner, CreatedAt: time.Now().UTC()}
}

// State reports the lifecycle state.
func (p *Page) State() State {
	switch {
	case p.Error != "":
		return FetchedError
	case p.FetchedAt.IsZero() && p.Content == "":
		return Empty
	default:
		return FetchedOK
	}
}

// Host is the lower-cased host name of the page URL, without port.
func (p *Page) Host() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Origin is "scheme://host/" for the page URL, defaulting to http.
func (p *Page) Origin() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + u.Host + "/"
}

// BaseHref is the directory-level URL relative links resolve against.
func (p *Page) BaseHref() string {
	return extract.BaseHref(p.URL)
}

// Document parses the stored content. It is nil for pages without usable
// content, including every page in the error state.
func (p *Page) Document() (*html.Node, error) {
	if p.Error != "" || p.Content == "" {
		return nil, nil
	}
	return html.Parse(strings.NewReader(p.Content))
}

// Contents is the outcome of loading a URL, detached from any page so it
// can be committed in one step.
type Contents struct {
	Raw     []byte
	Content string
	Title   string
	Error   string
}

// Apply replaces the page's loaded fields with c. Identity fields are kept.
func (c Contents) Apply(p *Page) {
	p.RawContent = c.Raw
	p.Content = c.Content
	p.Title = c.Title
	p.Error = c.Error
}
