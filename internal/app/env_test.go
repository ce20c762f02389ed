package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// LoadEnvFiles reads KEY=VALUE pairs, quoted values and export prefixes.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR=\"beta gamma\"\nBAZ='x=y'\nnot a pair\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want beta gamma", got)
	}
	if got := os.Getenv("BAZ"); got != "x=y" {
		t.Fatalf("BAZ=%q, want x=y", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PAGEFEED_OWNER", "bob")
	t.Setenv("PAGEFEED_DB", "/tmp/pagefeed.db")
	t.Setenv("PAGEFEED_FETCH_TIMEOUT", "3s")
	t.Setenv("PAGEFEED_REDIRECT_HOPS", "2")
	t.Setenv("PAGEFEED_MAX_CONCURRENT", "not-a-number")
	t.Setenv("PAGEFEED_CACHE_CLEAR", "yes")
	t.Setenv("PAGEFEED_CACHE_BYPASS", "1")
	t.Setenv("PAGEFEED_VERBOSE", "off")

	cfg := DefaultConfig()
	cfg.MaxConcurrent = 4
	cfg.Verbose = true
	ApplyEnvOverrides(&cfg)

	if cfg.Owner != "bob" || cfg.DBPath != "/tmp/pagefeed.db" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	if cfg.FetchTimeout != 3*time.Second || cfg.RedirectMaxHops != 2 {
		t.Fatalf("numeric overrides not applied: %+v", cfg)
	}
	if cfg.MaxConcurrent != 4 {
		t.Fatalf("invalid number should be ignored, got %d", cfg.MaxConcurrent)
	}
	if !cfg.CacheClear || !cfg.CacheBypass || cfg.Verbose {
		t.Fatalf("boolean overrides not applied: clear=%v verbose=%v", cfg.CacheClear, cfg.Verbose)
	}
	if cfg.UserAgent != defaultUserAgent {
		t.Fatalf("unset variables must keep existing values")
	}
}
