// Package app wires configuration, storage, fetching and the transform
// engine into the operations the CLI exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagefeed/internal/cache"
	"github.com/hyperifyio/pagefeed/internal/fetch"
	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/store"
	"github.com/hyperifyio/pagefeed/internal/transform"
)

type App struct {
	cfg      Config
	owner    page.Owner
	store    store.Store
	pipeline *page.Pipeline
	engine   *transform.Engine
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	client := &fetch.Client{
		HTTPClient:        newHTTPClient(cfg.FetchTimeout),
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.FetchTimeout,
		RedirectMaxHops:   cfg.RedirectMaxHops,
		MaxConcurrent:     cfg.MaxConcurrent,
	}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		client.Cache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		client.BypassCache = cfg.CacheBypass
	}

	st, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	pl := &page.Pipeline{Fetcher: client, DefaultTitle: cfg.DefaultTitle}
	a := &App{
		cfg:      cfg,
		owner:    page.Owner(cfg.Owner),
		store:    st,
		pipeline: pl,
		engine: &transform.Engine{
			Source: st,
			Loader: pl,
		},
	}
	if fb := fallbackPolicy(cfg.Fallbacks); fb != nil {
		a.engine.Fallback = fb
	}
	return a, nil
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemory(), nil
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Msg("opened page database")
	return st, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

// Save fetches rawURL, applies the owner's transforms and stores the result.
// A URL the owner already saved is not stored twice: a page that was never
// fetched is fetched, one whose last fetch failed is retried, and a good
// page is returned as it is.
//
// A failed fetch or parse is recorded on the page, not returned. A transform
// failure is logged and the page is stored with the content it had before
// the failing rule; the *transform.TransformError is then returned along
// with the page. Cancellation stores nothing.
func (a *App) Save(ctx context.Context, rawURL string) (*page.Page, error) {
	p, err := a.find(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	switch p.State() {
	case page.Empty:
		if err := a.pipeline.Ensure(ctx, p); err != nil {
			return nil, err
		}
	case page.FetchedError:
		if _, err := a.pipeline.Update(ctx, p); err != nil {
			return nil, err
		}
	default:
		log.Debug().Str("key", p.Key).Str("url", p.URL).Msg("page already saved")
		return p, nil
	}
	return a.process(ctx, p)
}

// SaveContent stores rawURL with a body that was downloaded elsewhere,
// replacing the content of an existing page for the same URL.
func (a *App) SaveContent(ctx context.Context, rawURL string, raw []byte) (*page.Page, error) {
	p, err := a.find(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	a.pipeline.PopulateContent(p, raw)
	return a.process(ctx, p)
}

// find returns the owner's page for rawURL, or a new unsaved one.
func (a *App) find(ctx context.Context, rawURL string) (*page.Page, error) {
	p, err := a.store.FindPage(ctx, a.owner, rawURL)
	if errors.Is(err, store.ErrNotFound) {
		return page.New(a.owner, rawURL), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find page: %w", err)
	}
	return p, nil
}

// Update retries a page whose last fetch failed and re-applies transforms
// when the retry changed it. Pages without an error are returned unchanged.
func (a *App) Update(ctx context.Context, key string) (*page.Page, bool, error) {
	p, err := a.Page(ctx, key)
	if err != nil {
		return nil, false, err
	}
	changed, err := a.pipeline.Update(ctx, p)
	if err != nil || !changed {
		return p, false, err
	}
	p, err = a.process(ctx, p)
	return p, true, err
}

// UpdateAll retries every errored page of the owner, up to limit pages.
func (a *App) UpdateAll(ctx context.Context, limit int) (int, error) {
	pages, err := a.store.FindPages(ctx, a.owner, limit)
	if err != nil {
		return 0, err
	}
	updated := 0
	var errs []error
	for _, p := range pages {
		if p.State() != page.FetchedError {
			continue
		}
		_, changed, err := a.Update(ctx, p.Key)
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if changed {
			updated++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return updated, errors.Join(errs...)
}

func (a *App) process(ctx context.Context, p *page.Page) (*page.Page, error) {
	terr := a.engine.Process(ctx, p)
	if terr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var te *transform.TransformError
		if !errors.As(terr, &te) {
			return nil, terr
		}
		log.Warn().Err(terr).Str("url", p.URL).Msg("transform failed; saving page without it")
	}
	if err := a.store.SavePage(ctx, p); err != nil {
		return nil, fmt.Errorf("save page: %w", err)
	}
	log.Info().Str("key", p.Key).Str("url", p.URL).Str("state", p.State().String()).Msg("page saved")
	return p, terr
}

// Pages lists the owner's pages, newest first.
func (a *App) Pages(ctx context.Context, limit int) ([]*page.Page, error) {
	return a.store.FindPages(ctx, a.owner, limit)
}

// Page returns one of the owner's pages. Pages of other owners are reported
// as store.ErrNotFound.
func (a *App) Page(ctx context.Context, key string) (*page.Page, error) {
	p, err := a.store.GetPage(ctx, key)
	if err != nil {
		return nil, err
	}
	if p.Owner != a.owner {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (a *App) DeletePage(ctx context.Context, key string) error {
	if _, err := a.Page(ctx, key); err != nil {
		return err
	}
	return a.store.DeletePage(ctx, key)
}

// AddRule validates and stores a new transform for the owner.
func (a *App) AddRule(ctx context.Context, kind transform.Kind, host, sel, name string, index *int) (transform.Transform, error) {
	t, err := transform.Create(kind, a.owner, host, sel, name, index)
	if err != nil {
		return transform.Transform{}, err
	}
	if err := a.store.SaveTransform(ctx, &t); err != nil {
		return transform.Transform{}, err
	}
	log.Info().Str("key", t.Key).Str("host", t.HostMatch).Str("kind", string(t.Kind())).Msg("transform added")
	return t, nil
}

// Rules lists the owner's transforms in the order they were added.
func (a *App) Rules(ctx context.Context) ([]transform.Transform, error) {
	return a.store.FindTransforms(ctx, a.owner)
}

// RulesFor lists the transforms that would run for host, in run order.
func (a *App) RulesFor(ctx context.Context, host string) ([]transform.Transform, error) {
	return a.engine.FindApplicable(ctx, a.owner, strings.ToLower(host))
}

func (a *App) DeleteRule(ctx context.Context, key string) error {
	t, err := a.store.GetTransform(ctx, key)
	if err != nil {
		return err
	}
	if t.Owner != a.owner {
		return store.ErrNotFound
	}
	return a.store.DeleteTransform(ctx, key)
}
