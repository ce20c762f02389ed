package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/transform"
)

// Memory is an in-process Store. It hands out copies so callers never share
// state with it.
type Memory struct {
	mu         sync.Mutex
	pages      map[string]page.Page
	transforms map[string]transform.Transform
	// order keeps transform insertion order for stable listing.
	order []string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		pages:      make(map[string]page.Page),
		transforms: make(map[string]transform.Transform),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) SavePage(ctx context.Context, p *page.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Key == "" {
		p.Key = newKey()
	}
	m.pages[p.Key] = copyPage(p)
	return nil
}

func (m *Memory) FindPages(_ context.Context, owner page.Owner, limit int) ([]*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*page.Page
	for _, p := range m.pages {
		if p.Owner == owner {
			c := copyPage(&p)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := limitOrDefault(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) FindPage(_ context.Context, owner page.Owner, url string) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *page.Page
	for _, p := range m.pages {
		if p.Owner != owner || p.URL != url {
			continue
		}
		if found == nil || p.CreatedAt.After(found.CreatedAt) {
			c := copyPage(&p)
			found = &c
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *Memory) GetPage(_ context.Context, key string) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[key]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyPage(&p)
	return &c, nil
}

func (m *Memory) DeletePage(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[key]; !ok {
		return ErrNotFound
	}
	delete(m.pages, key)
	return nil
}

func (m *Memory) SaveTransform(ctx context.Context, t *transform.Transform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Key == "" {
		t.Key = newKey()
	}
	if _, ok := m.transforms[t.Key]; !ok {
		m.order = append(m.order, t.Key)
	}
	m.transforms[t.Key] = copyTransform(*t)
	return nil
}

func (m *Memory) FindTransforms(_ context.Context, owner page.Owner) ([]transform.Transform, error) {
	return m.filter(func(t transform.Transform) bool { return t.Owner == owner }), nil
}

func (m *Memory) FindByOwnerAndHost(_ context.Context, owner page.Owner, host string) ([]transform.Transform, error) {
	host = strings.ToLower(host)
	return m.filter(func(t transform.Transform) bool {
		return t.Owner == owner && t.HostMatch == host
	}), nil
}

func (m *Memory) GetTransform(_ context.Context, key string) (transform.Transform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transforms[key]
	if !ok {
		return transform.Transform{}, ErrNotFound
	}
	return copyTransform(t), nil
}

func (m *Memory) DeleteTransform(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transforms[key]; !ok {
		return ErrNotFound
	}
	delete(m.transforms, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) filter(keep func(transform.Transform) bool) []transform.Transform {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []transform.Transform
	for _, k := range m.order {
		if t := m.transforms[k]; keep(t) {
			out = append(out, copyTransform(t))
		}
	}
	return out
}

// copyPage drops RawContent, which the SQLite store does not keep either.
func copyPage(p *page.Page) page.Page {
	c := *p
	c.RawContent = nil
	return c
}

func copyTransform(t transform.Transform) transform.Transform {
	if t.Index != nil {
		i := *t.Index
		t.Index = &i
	}
	return t
}
