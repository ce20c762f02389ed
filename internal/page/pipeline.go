package page

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/hyperifyio/pagefeed/internal/extract"
	"github.com/hyperifyio/pagefeed/internal/parse"
	"github.com/hyperifyio/pagefeed/internal/textutil"
)

// NoContent is stored as the content of a page whose download failed.
const NoContent = "no content was downloaded"

// Fetcher retrieves raw page bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Parser turns raw bytes into a document with references made absolute.
type Parser interface {
	Parse(raw []byte, baseHref string) (*html.Node, error)
}

// Pipeline runs Fetch, Parse and Extract for a URL. Fetch and parse
// failures become data on the result; only cancellation is returned as an
// error.
type Pipeline struct {
	Fetcher Fetcher
	// Parser defaults to the standard fallback chain.
	Parser Parser
	// DefaultTitle defaults to the package DefaultTitle.
	DefaultTitle string

	now func() time.Time
}

func (pl *Pipeline) parser() Parser {
	if pl.Parser != nil {
		return pl.Parser
	}
	return &parse.Chain{}
}

func (pl *Pipeline) title() string {
	if pl.DefaultTitle != "" {
		return pl.DefaultTitle
	}
	return DefaultTitle
}

func (pl *Pipeline) clock() time.Time {
	if pl.now != nil {
		return pl.now()
	}
	return time.Now().UTC()
}

// Load fetches rawURL and extracts its contents.
func (pl *Pipeline) Load(ctx context.Context, rawURL string) (Contents, error) {
	raw, err := pl.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Contents{}, ctxErr
		}
		log.Debug().Err(err).Str("url", rawURL).Msg("fetch failed")
		return Contents{Title: pl.title(), Error: err.Error(), Content: NoContent}, nil
	}
	return pl.Extract(raw, extract.BaseHref(rawURL)), nil
}

// Extract parses raw and derives title and body. An unparseable document
// keeps its ASCII-coerced bytes as content.
func (pl *Pipeline) Extract(raw []byte, baseHref string) Contents {
	doc, err := pl.parser().Parse(raw, baseHref)
	if err != nil {
		return pl.failed(raw, err)
	}
	res, err := extract.FromDocument(doc, pl.title())
	if err != nil {
		return pl.failed(raw, err)
	}
	return Contents{Raw: raw, Content: res.Body, Title: res.Title}
}

func (pl *Pipeline) failed(raw []byte, err error) Contents {
	log.Debug().Err(err).Msg("extraction failed")
	return Contents{Raw: raw, Title: pl.title(), Error: err.Error(), Content: textutil.ASCII(raw)}
}

// Populate loads p.URL into p. Nothing is committed when ctx is cancelled.
func (pl *Pipeline) Populate(ctx context.Context, p *Page) error {
	c, err := pl.Load(ctx, p.URL)
	if err != nil {
		return err
	}
	c.Apply(p)
	p.FetchedAt = pl.clock()
	return nil
}

// PopulateContent fills p from bytes that were already downloaded.
func (pl *Pipeline) PopulateContent(p *Page, raw []byte) {
	pl.Extract(raw, p.BaseHref()).Apply(p)
	p.FetchedAt = pl.clock()
}

// Ensure populates p if it has never been fetched.
func (pl *Pipeline) Ensure(ctx context.Context, p *Page) error {
	if p.State() != Empty {
		return nil
	}
	return pl.Populate(ctx, p)
}

// Update re-fetches p only when it is in the error state and reports whether
// a fetch was attempted.
func (pl *Pipeline) Update(ctx context.Context, p *Page) (bool, error) {
	if p.Error == "" {
		return false, nil
	}
	log.Info().Str("url", p.URL).Msg("page had an error; re-downloading")
	if err := pl.Populate(ctx, p); err != nil {
		return true, err
	}
	if p.Error == "" {
		log.Info().Str("url", p.URL).Msg("page retrieved successfully")
	}
	return true, nil
}
