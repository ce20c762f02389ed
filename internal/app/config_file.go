package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/transform"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Owner string `yaml:"owner" json:"owner"`
	DB    string `yaml:"db" json:"db"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		Bypass      bool          `yaml:"bypass" json:"bypass"`
	} `yaml:"cache" json:"cache"`

	Fetch struct {
		UserAgent     string        `yaml:"userAgent" json:"userAgent"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
		RedirectHops  int           `yaml:"redirectHops" json:"redirectHops"`
		MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	} `yaml:"fetch" json:"fetch"`

	DefaultTitle string `yaml:"defaultTitle" json:"defaultTitle"`
	Verbose      bool   `yaml:"verbose" json:"verbose"`

	Fallbacks []FallbackConfig `yaml:"fallbacks" json:"fallbacks"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. Call it on
// defaults, before env and flags are applied.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if fc.Owner != "" {
		cfg.Owner = fc.Owner
	}
	if fc.DB != "" {
		cfg.DBPath = fc.DB
	}

	if fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Cache.Bypass {
		cfg.CacheBypass = true
	}

	if fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}
	if fc.Fetch.Timeout > 0 {
		cfg.FetchTimeout = fc.Fetch.Timeout
	}
	if fc.Fetch.RedirectHops > 0 {
		cfg.RedirectMaxHops = fc.Fetch.RedirectHops
	}
	if fc.Fetch.MaxConcurrent > 0 {
		cfg.MaxConcurrent = fc.Fetch.MaxConcurrent
	}

	if fc.DefaultTitle != "" {
		cfg.DefaultTitle = fc.DefaultTitle
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
	if len(fc.Fallbacks) > 0 {
		cfg.Fallbacks = append([]FallbackConfig{}, fc.Fallbacks...)
	}
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Owner) == "" {
		return errors.New("config: owner is required (or set PAGEFEED_OWNER)")
	}
	if cfg.FetchTimeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	if cfg.RedirectMaxHops < 0 || cfg.MaxConcurrent < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	for i, f := range cfg.Fallbacks {
		if _, err := transform.Create(transform.Kind(f.Kind), page.Owner(cfg.Owner), f.Host, f.Selector, f.Name, nil); err != nil {
			return fmt.Errorf("config: fallbacks[%d]: %w", i, err)
		}
	}
	return nil
}

// fallbackPolicy converts configured fallback rules into a transform policy.
func fallbackPolicy(fs []FallbackConfig) transform.Fallbacks {
	if len(fs) == 0 {
		return nil
	}
	out := make(transform.Fallbacks, 0, len(fs))
	for _, f := range fs {
		r := transform.FallbackRule{
			Host:     f.Host,
			Kind:     transform.Kind(f.Kind),
			Selector: f.Selector,
			Name:     f.Name,
		}
		for _, o := range f.Owners {
			r.Owners = append(r.Owners, page.Owner(o))
		}
		out = append(out, r)
	}
	return out
}
