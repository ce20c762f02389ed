// Package store persists pages and transform rules. Memory keeps everything
// in process; SQLite writes to a database file.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/transform"
)

// DefaultLimit caps FindPages when the caller passes a non-positive limit.
const DefaultLimit = 50

// ErrNotFound is returned when a key or lookup matches nothing.
var ErrNotFound = errors.New("not found")

// PageStore persists saved pages.
type PageStore interface {
	// SavePage inserts or replaces p, assigning a key when p.Key is empty.
	SavePage(ctx context.Context, p *page.Page) error
	// FindPages lists the owner's pages, newest first.
	FindPages(ctx context.Context, owner page.Owner, limit int) ([]*page.Page, error)
	FindPage(ctx context.Context, owner page.Owner, url string) (*page.Page, error)
	GetPage(ctx context.Context, key string) (*page.Page, error)
	DeletePage(ctx context.Context, key string) error
}

// TransformStore persists transform rules. It satisfies transform.Source.
type TransformStore interface {
	SaveTransform(ctx context.Context, t *transform.Transform) error
	FindTransforms(ctx context.Context, owner page.Owner) ([]transform.Transform, error)
	FindByOwnerAndHost(ctx context.Context, owner page.Owner, host string) ([]transform.Transform, error)
	GetTransform(ctx context.Context, key string) (transform.Transform, error)
	DeleteTransform(ctx context.Context, key string) error
}

// Store is both halves of the persistence boundary.
type Store interface {
	PageStore
	TransformStore
	Close() error
}

func newKey() string { return uuid.NewString() }

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
