package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/pagefeed/internal/transform"
)

func TestLoadConfigFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagefeed.yaml")
	content := `
owner: bob
db: ./pages.db
cache:
  dir: /tmp/pf
  maxAge: 48h
  bypass: true
fetch:
  userAgent: test-agent
  timeout: 5s
  redirectHops: 3
fallbacks:
  - host: news.example.com
    kind: follow
    selector: "div.story a"
    name: story
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)

	if cfg.Owner != "bob" || cfg.DBPath != "./pages.db" || cfg.CacheDir != "/tmp/pf" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.CacheMaxAge != 48*time.Hour || cfg.FetchTimeout != 5*time.Second || cfg.RedirectMaxHops != 3 {
		t.Fatalf("durations/limits not applied: %+v", cfg)
	}
	if !cfg.CacheBypass {
		t.Fatalf("cache.bypass not applied")
	}
	if cfg.UserAgent != "test-agent" || cfg.DefaultTitle == "" {
		t.Fatalf("unexpected strings: %+v", cfg)
	}
	if len(cfg.Fallbacks) != 1 || cfg.Fallbacks[0].Selector != "div.story a" {
		t.Fatalf("fallbacks not loaded: %+v", cfg.Fallbacks)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagefeed.json")
	if err := os.WriteFile(path, []byte(`{"owner":"alice","fetch":{"maxConcurrent":2}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	if cfg.Owner != "alice" || cfg.MaxConcurrent != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.FetchTimeout != defaultFetchTimeout {
		t.Fatalf("unset file values must keep defaults")
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no owner", func(c *Config) { c.Owner = " " }, "owner is required"},
		{"negative timeout", func(c *Config) { c.FetchTimeout = -time.Second }, "negative durations"},
		{"negative hops", func(c *Config) { c.RedirectMaxHops = -1 }, "negative limits"},
		{"bad fallback", func(c *Config) {
			c.Fallbacks = []FallbackConfig{{Host: "a.com", Kind: "explode"}}
		}, "fallbacks[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Fallbacks = []FallbackConfig{{Host: "a.com", Kind: "follow"}}
	if err := ValidateConfig(cfg); !errors.Is(err, transform.ErrInvalid) {
		t.Fatalf("follow fallback without selector should be invalid, got %v", err)
	}
}
