package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagefeed/internal/app"
	"github.com/hyperifyio/pagefeed/internal/page"
	"github.com/hyperifyio/pagefeed/internal/transform"
)

const usage = `usage: pagefeed [flags] <command> [args]

commands:
  save URL...                          fetch, transform and store pages
  import URL FILE                      store URL with a body read from FILE
  update [KEY...]                      retry pages whose last fetch failed
  list [-n N]                          list saved pages, newest first
  show KEY                             print a saved page
  delete KEY                           delete a saved page
  rules [HOST]                         list rules, or the rules that run for HOST
  rule-add -host H -kind K [-selector S] [-name N] [-index I]
  rule-del KEY                         delete a rule

flags:
`

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, args, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid arguments")
		os.Exit(2)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args, os.Stdout); err != nil {
		log.Error().Err(err).Msg("run failed")
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// parseArgs resolves configuration with precedence defaults < config file <
// env (including .env files) < flags, and returns the remaining arguments.
func parseArgs(argv []string, stderr io.Writer) (app.Config, []string, error) {
	fs := flag.NewFlagSet("pagefeed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		fl         = app.DefaultConfig()
		configPath string
	)
	fs.StringVar(&configPath, "config", os.Getenv(app.EnvPrefix+"CONFIG"), "Path to YAML or JSON config file")
	fs.StringVar(&fl.Owner, "owner", fl.Owner, "Owner whose pages and rules are used")
	fs.StringVar(&fl.DBPath, "db", fl.DBPath, "SQLite database path (empty keeps data in memory)")
	fs.StringVar(&fl.CacheDir, "cache.dir", fl.CacheDir, "HTTP cache directory (empty disables)")
	fs.DurationVar(&fl.CacheMaxAge, "cache.maxAge", fl.CacheMaxAge, "Purge cache entries older than this (0 disables)")
	fs.BoolVar(&fl.CacheClear, "cache.clear", fl.CacheClear, "Clear cache directory before run")
	fs.BoolVar(&fl.CacheStrictPerms, "cache.strictPerms", fl.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.BoolVar(&fl.CacheBypass, "cache.bypass", fl.CacheBypass, "Skip cache revalidation but still store fresh responses")
	fs.StringVar(&fl.UserAgent, "ua", fl.UserAgent, "User-Agent for page requests")
	fs.DurationVar(&fl.FetchTimeout, "timeout", fl.FetchTimeout, "Per-request fetch timeout")
	fs.IntVar(&fl.RedirectMaxHops, "redirects", fl.RedirectMaxHops, "Maximum redirects to follow")
	fs.IntVar(&fl.MaxConcurrent, "max.concurrent", fl.MaxConcurrent, "Maximum concurrent requests (0 = unlimited)")
	fs.StringVar(&fl.DefaultTitle, "title", fl.DefaultTitle, "Title used when a page has none")
	fs.BoolVar(&fl.Verbose, "v", fl.Verbose, "Verbose logging")
	if err := fs.Parse(argv); err != nil {
		return app.Config{}, nil, err
	}

	if err := app.LoadEnvFiles(app.DefaultEnvFiles...); err != nil {
		return app.Config{}, nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := app.DefaultConfig()
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return app.Config{}, nil, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "owner":
			cfg.Owner = fl.Owner
		case "db":
			cfg.DBPath = fl.DBPath
		case "cache.dir":
			cfg.CacheDir = fl.CacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = fl.CacheMaxAge
		case "cache.clear":
			cfg.CacheClear = fl.CacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = fl.CacheStrictPerms
		case "cache.bypass":
			cfg.CacheBypass = fl.CacheBypass
		case "ua":
			cfg.UserAgent = fl.UserAgent
		case "timeout":
			cfg.FetchTimeout = fl.FetchTimeout
		case "redirects":
			cfg.RedirectMaxHops = fl.RedirectMaxHops
		case "max.concurrent":
			cfg.MaxConcurrent = fl.MaxConcurrent
		case "title":
			cfg.DefaultTitle = fl.DefaultTitle
		case "v":
			cfg.Verbose = fl.Verbose
		}
	})

	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

func run(ctx context.Context, cfg app.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "save":
		return runSave(ctx, a, rest, out)
	case "import":
		if len(rest) != 2 {
			return fmt.Errorf("%w: import URL FILE", errUsage)
		}
		raw, err := os.ReadFile(rest[1])
		if err != nil {
			return err
		}
		p, err := a.SaveContent(ctx, rest[0], raw)
		if p != nil {
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.Key, p.State(), p.Title)
		}
		return err
	case "update":
		return runUpdate(ctx, a, rest, out)
	case "list":
		return runList(ctx, a, rest, out)
	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("%w: show KEY", errUsage)
		}
		p, err := a.Page(ctx, rest[0])
		if err != nil {
			return err
		}
		printPage(out, p)
		return nil
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("%w: delete KEY", errUsage)
		}
		return a.DeletePage(ctx, rest[0])
	case "rules":
		return runRules(ctx, a, rest, out)
	case "rule-add":
		return runRuleAdd(ctx, a, rest, out)
	case "rule-del":
		if len(rest) != 1 {
			return fmt.Errorf("%w: rule-del KEY", errUsage)
		}
		return a.DeleteRule(ctx, rest[0])
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func runSave(ctx context.Context, a *app.App, urls []string, out io.Writer) error {
	if len(urls) == 0 {
		return fmt.Errorf("%w: save URL...", errUsage)
	}
	var errs []error
	for _, u := range urls {
		p, err := a.Save(ctx, u)
		if p != nil {
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.Key, p.State(), p.Title)
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
		}
	}
	return errors.Join(errs...)
}

func runUpdate(ctx context.Context, a *app.App, keys []string, out io.Writer) error {
	if len(keys) == 0 {
		n, err := a.UpdateAll(ctx, 0)
		fmt.Fprintf(out, "updated %d pages\n", n)
		return err
	}
	var errs []error
	for _, k := range keys {
		p, changed, err := a.Update(ctx, k)
		if p != nil {
			status := "unchanged"
			if changed {
				status = "updated"
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.Key, status, p.State())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func runList(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := fs.Int("n", 0, "Maximum number of pages (0 = default)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	pages, err := a.Pages(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATE\tTITLE\tURL")
	for _, p := range pages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Key, p.State(), p.Title, p.URL)
	}
	return tw.Flush()
}

func printPage(out io.Writer, p *page.Page) {
	fmt.Fprintf(out, "Title: %s\nURL: %s\nState: %s\n", p.Title, p.URL, p.State())
	if p.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", strings.TrimSpace(p.Error))
	}
	fmt.Fprintf(out, "\n%s\n", p.Content)
}

func runRules(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	var (
		rules []transform.Transform
		err   error
	)
	switch len(args) {
	case 0:
		rules, err = a.Rules(ctx)
	case 1:
		rules, err = a.RulesFor(ctx, args[0])
	default:
		return fmt.Errorf("%w: rules [HOST]", errUsage)
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tHOST\tINDEX\tKIND\tSELECTOR\tNAME")
	for _, t := range rules {
		idx := "-"
		if t.Index != nil {
			idx = strconv.Itoa(*t.Index)
		}
		key := t.Key
		if key == "" {
			key = "(fallback)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", key, t.HostMatch, idx, t.Kind(), t.Selector(), t.Name)
	}
	return tw.Flush()
}

func runRuleAdd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rule-add", flag.ContinueOnError)
	host := fs.String("host", "", "Host the rule applies to")
	kind := fs.String("kind", string(transform.KindFollow), "Rule kind: follow, delete or select")
	sel := fs.String("selector", "", "CSS selector, or XPath when it starts with / or (")
	name := fs.String("name", "", "Optional rule name")
	index := fs.String("index", "", "Optional ordering index; rules without one run last")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	var idx *int
	if *index != "" {
		n, err := strconv.Atoi(*index)
		if err != nil {
			return fmt.Errorf("%w: index %q is not an integer", errUsage, *index)
		}
		idx = &n
	}
	t, err := a.AddRule(ctx, transform.Kind(*kind), *host, *sel, *name, idx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, t.Key)
	return nil
}
