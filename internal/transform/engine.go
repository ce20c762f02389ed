package transform

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagefeed/internal/page"
)

// Source lists the stored rules for an owner and host.
type Source interface {
	FindByOwnerAndHost(ctx context.Context, owner page.Owner, host string) ([]Transform, error)
}

// Policy supplies rules for pages that have none of their own.
type Policy interface {
	Rules(owner page.Owner, host string) []Transform
}

// Engine selects the rules that apply to a page and runs them in order.
type Engine struct {
	Source Source
	Loader Loader
	// Fallback is optional.
	Fallback Policy
}

// FindApplicable returns the owner's rules whose HostMatch equals host,
// ordered by Index with nil indexes last. When there are none, the fallback
// policy's rules for the host are used instead.
func (e *Engine) FindApplicable(ctx context.Context, owner page.Owner, host string) ([]Transform, error) {
	found, err := e.Source.FindByOwnerAndHost(ctx, owner, host)
	if err != nil {
		return nil, fmt.Errorf("find transforms: %w", err)
	}
	out := matching(found, owner, host)
	if len(out) == 0 && e.Fallback != nil {
		out = matching(e.Fallback.Rules(owner, host), owner, host)
		if len(out) > 0 {
			log.Debug().Str("host", host).Int("count", len(out)).Msg("using fallback transforms")
		}
	}
	Sort(out)
	return out, nil
}

// Process applies every applicable rule to p in order and stops at the first
// failure, returning it as a *TransformError. Rules already applied keep
// their effect; the failing rule leaves p as it found it.
func (e *Engine) Process(ctx context.Context, p *page.Page) error {
	rules, err := e.FindApplicable(ctx, p.Owner, p.Host())
	if err != nil {
		return err
	}
	for _, t := range rules {
		if err := e.Apply(ctx, t, p); err != nil {
			return err
		}
	}
	return nil
}

// Apply runs a single rule against p.
func (e *Engine) Apply(ctx context.Context, t Transform, p *page.Page) error {
	if t.Action == nil {
		return &TransformError{Name: t.Name, Err: ErrInvalid}
	}
	log.Debug().Str("transform", t.String()).Str("url", p.URL).Msg("applying transform")
	if err := t.Action.apply(ctx, e.Loader, p); err != nil {
		te := &TransformError{Kind: t.Kind(), Name: t.Name, Err: err}
		log.Info().Err(err).Str("transform", t.String()).Str("url", p.URL).Msg("transform failed")
		return te
	}
	return nil
}

// Sort orders rules by ascending Index, nil last, keeping the input order
// between equal indexes.
func Sort(ts []Transform) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i].Index, ts[j].Index
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

func matching(ts []Transform, owner page.Owner, host string) []Transform {
	out := make([]Transform, 0, len(ts))
	for _, t := range ts {
		if t.Owner == owner && t.HostMatch == host {
			out = append(out, t)
		}
	}
	return out
}
