package app

import (
	"time"

	"github.com/hyperifyio/pagefeed/internal/page"
)

const (
	defaultOwner        = "local"
	defaultUserAgent    = "pagefeed/1.0 (+https://github.com/hyperifyio/pagefeed)"
	defaultCacheDir     = ".pagefeed-cache"
	defaultFetchTimeout = 15 * time.Second
	defaultRedirectHops = 5
)

// Config holds runtime configuration for the application.
type Config struct {
	Owner string
	// DBPath selects the SQLite database. Empty keeps everything in memory.
	DBPath string

	// HTTP cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	// CacheBypass skips revalidation but still stores fresh responses.
	CacheBypass      bool

	// Fetch
	UserAgent       string
	FetchTimeout    time.Duration
	RedirectMaxHops int
	MaxConcurrent   int

	DefaultTitle string
	Verbose      bool

	// Fallbacks are rules used for hosts where the owner has none.
	Fallbacks []FallbackConfig
}

// FallbackConfig describes one fallback rule in config files.
type FallbackConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Kind     string   `yaml:"kind" json:"kind"`
	Selector string   `yaml:"selector" json:"selector"`
	Name     string   `yaml:"name" json:"name"`
	Owners   []string `yaml:"owners" json:"owners"`
}

// DefaultConfig returns the lowest-precedence settings.
func DefaultConfig() Config {
	return Config{
		Owner:           defaultOwner,
		CacheDir:        defaultCacheDir,
		UserAgent:       defaultUserAgent,
		FetchTimeout:    defaultFetchTimeout,
		RedirectMaxHops: defaultRedirectHops,
		DefaultTitle:    page.DefaultTitle,
	}
}
