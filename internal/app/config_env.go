package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix namespaces every environment variable the application reads.
const EnvPrefix = "PAGEFEED_"

func getenv(name string) string { return strings.TrimSpace(os.Getenv(EnvPrefix + name)) }

// ApplyEnvOverrides overwrites cfg with every PAGEFEED_* variable that is
// set. Unparseable numbers and durations are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				*dst = n
			}
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, key string) {
		switch strings.ToLower(getenv(key)) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	setString(&cfg.Owner, "OWNER")
	setString(&cfg.DBPath, "DB")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.CacheBypass, "CACHE_BYPASS")
	setString(&cfg.UserAgent, "USER_AGENT")
	setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setInt(&cfg.RedirectMaxHops, "REDIRECT_HOPS")
	setInt(&cfg.MaxConcurrent, "MAX_CONCURRENT")
	setString(&cfg.DefaultTitle, "DEFAULT_TITLE")
	setBool(&cfg.Verbose, "VERBOSE")
}
