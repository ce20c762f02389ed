package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/transform"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	key         TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	owner       TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	fetched_at  INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_owner_created ON pages(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_pages_owner_url ON pages(owner, url);

CREATE TABLE IF NOT EXISTS transforms (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	key        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	host_match TEXT NOT NULL,
	owner      TEXT NOT NULL,
	idx        INTEGER,
	kind       TEXT NOT NULL,
	selector   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transforms_owner_host ON transforms(owner, host_match);
`

// SQLite is a Store backed by modernc.org/sqlite.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == MemoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// RawContent is not stored; pages keep only their extracted content.
const pageColumns = `key, url, owner, content, title, error, fetched_at, created_at`

func (s *SQLite) SavePage(ctx context.Context, p *page.Page) error {
	if p.Key == "" {
		p.Key = newKey()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			url = excluded.url,
			owner = excluded.owner,
			content = excluded.content,
			title = excluded.title,
			error = excluded.error,
			fetched_at = excluded.fetched_at,
			created_at = excluded.created_at`,
		p.Key, p.URL, string(p.Owner), p.Content, p.Title, p.Error,
		unixNano(p.FetchedAt), unixNano(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	return nil
}

func (s *SQLite) FindPages(ctx context.Context, owner page.Owner, limit int) ([]*page.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner = ? ORDER BY created_at DESC, key LIMIT ?`,
		string(owner), limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("find pages: %w", err)
	}
	defer rows.Close()
	var out []*page.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) FindPage(ctx context.Context, owner page.Owner, url string) (*page.Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner = ? AND url = ? ORDER BY created_at DESC LIMIT 1`,
		string(owner), url)
	return scanPage(row)
}

func (s *SQLite) GetPage(ctx context.Context, key string) (*page.Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE key = ?`, key)
	return scanPage(row)
}

func (s *SQLite) DeletePage(ctx context.Context, key string) error {
	return s.deleteKey(ctx, "pages", key)
}

func (s *SQLite) SaveTransform(ctx context.Context, t *transform.Transform) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Key == "" {
		t.Key = newKey()
	}
	var idx sql.NullInt64
	if t.Index != nil {
		idx = sql.NullInt64{Int64: int64(*t.Index), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transforms (key, name, host_match, owner, idx, kind, selector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			host_match = excluded.host_match,
			owner = excluded.owner,
			idx = excluded.idx,
			kind = excluded.kind,
			selector = excluded.selector`,
		t.Key, t.Name, t.HostMatch, string(t.Owner), idx, string(t.Kind()), t.Selector())
	if err != nil {
		return fmt.Errorf("save transform: %w", err)
	}
	return nil
}

const transformColumns = `key, name, host_match, owner, idx, kind, selector`

func (s *SQLite) FindTransforms(ctx context.Context, owner page.Owner) ([]transform.Transform, error) {
	return s.queryTransforms(ctx,
		`SELECT `+transformColumns+` FROM transforms WHERE owner = ? ORDER BY seq`, string(owner))
}

func (s *SQLite) FindByOwnerAndHost(ctx context.Context, owner page.Owner, host string) ([]transform.Transform, error) {
	return s.queryTransforms(ctx,
		`SELECT `+transformColumns+` FROM transforms WHERE owner = ? AND host_match = ? ORDER BY seq`,
		string(owner), strings.ToLower(host))
}

func (s *SQLite) GetTransform(ctx context.Context, key string) (transform.Transform, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transformColumns+` FROM transforms WHERE key = ?`, key)
	return scanTransform(row)
}

func (s *SQLite) DeleteTransform(ctx context.Context, key string) error {
	return s.deleteKey(ctx, "transforms", key)
}

func (s *SQLite) queryTransforms(ctx context.Context, query string, args ...any) ([]transform.Transform, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find transforms: %w", err)
	}
	defer rows.Close()
	var out []transform.Transform
	for rows.Next() {
		t, err := scanTransform(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) deleteKey(ctx context.Context, table, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(sc scanner) (*page.Page, error) {
	var (
		p                page.Page
		owner            string
		fetched, created int64
	)
	err := sc.Scan(&p.Key, &p.URL, &owner, &p.Content, &p.Title, &p.Error, &fetched, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	p.Owner = page.Owner(owner)
	p.FetchedAt = fromUnixNano(fetched)
	p.CreatedAt = fromUnixNano(created)
	return &p, nil
}

func scanTransform(sc scanner) (transform.Transform, error) {
	var (
		t         transform.Transform
		owner     string
		idx       sql.NullInt64
		kind, sel string
	)
	err := sc.Scan(&t.Key, &t.Name, &t.HostMatch, &owner, &idx, &kind, &sel)
	if errors.Is(err, sql.ErrNoRows) {
		return transform.Transform{}, ErrNotFound
	}
	if err != nil {
		return transform.Transform{}, fmt.Errorf("scan transform: %w", err)
	}
	t.Owner = page.Owner(owner)
	if idx.Valid {
		i := int(idx.Int64)
		t.Index = &i
	}
	a, err := transform.NewAction(transform.Kind(kind), sel)
	if err != nil {
		return transform.Transform{}, fmt.Errorf("transform %s: %w", t.Key, err)
	}
	t.Action = a
	return t, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
