package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/rendis/mapharvest/internal/config"
	"github.com/rendis/mapharvest/internal/engine/browser"
	"github.com/rendis/mapharvest/internal/engine/collection"
	"github.com/rendis/mapharvest/internal/engine/geo"
	"github.com/rendis/mapharvest/internal/engine/httpx"
	"github.com/rendis/mapharvest/internal/engine/scraper"
	"github.com/rendis/mapharvest/internal/engine/storage"
	"github.com/rendis/mapharvest/internal/logging"
	"github.com/rendis/mapharvest/internal/tui"
)

type collectFlags struct {
	configPath string
	useTUI     bool
	strictKey  bool
	term       string
}

func runCollect(args []string) error {
	var f collectFlags
	def := config.Default()

	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	fs.StringVar(&f.configPath, "config", "", "TOML or YAML config file")
	fs.StringVar(&f.term, "s", "", "Search term, e.g. \"cafes in Rome\"")
	fs.String("input", def.Input, "File with one search term per line, used when -s is empty")
	fs.Int("total", def.Total, "Max listings per term (0 = all)")
	fs.Int("t", def.Total, "Shorthand for -total")
	fs.String("output", def.Output, "Root directory for dated datasets")
	fs.Bool("headless", def.Browser.Headless, "Run Chrome headless")
	fs.BoolVar(&f.strictKey, "strict-key", false, "Include the address in the duplicate key")
	fs.BoolVar(&f.useTUI, "tui", false, "Show the interactive progress view")
	fs.String("sqlite", "", "Also mirror every dataset into this SQLite file")
	fs.String("postgres", "", "Also mirror every dataset into this Postgres DSN")
	fs.Bool("geocode", def.Geocode.Enabled, "Resolve coordinates from plus codes when the place URL has none")
	fs.String("log-level", def.Logging.Level, "trace, debug, info, warn or error")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapharvest collect [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mapharvest collect -s \"dentists in Lyon\" -total 50\n")
		fmt.Fprintf(os.Stderr, "  mapharvest collect -input input.txt -sqlite maps.db -tui\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, fs, f); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// No terms is fatal before anything is started.
	terms, err := cfg.SearchTerms()
	if err != nil {
		return err
	}

	layout := storage.NewLayout(cfg.Output, time.Now())
	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	logDir := cfg.Logging.Dir
	if logDir == "" {
		logDir = layout.Dir()
	}
	session, err := logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		Dir:   logDir,
		Quiet: f.useTUI,
		RunID: uuid.NewString(),
	})
	if err != nil {
		return err
	}
	defer session.Close()
	logger := session.Logger

	logger.Info().
		Int("terms", len(terms)).
		Int("total", cfg.Total).
		Str("output", layout.Dir()).
		Str("key", cfg.Key).
		Msg("session start")
	if !f.useTUI {
		fmt.Fprintf(os.Stderr, "Log: %s\n", session.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nShutting down gracefully, saving collected records...")
			cancel()
		case <-ctx.Done():
		}
	}()

	saver, err := newSaver(ctx, cfg, layout, logger)
	if err != nil {
		return err
	}
	defer saver.Close()
	loader := &storage.Loader{Layout: layout, Logger: logger}

	opts := &scraper.RunOptions{
		Total:  cfg.Total,
		Policy: collection.DefaultPolicy,
	}
	if cfg.Key == "strict" {
		opts.Policy = collection.StrictPolicy
	}
	if cfg.Geocode.Enabled {
		opts.Geocoder = newGeocoder(cfg)
	}

	timeout, minDelay, maxDelay := cfg.Browser.Durations()
	drv, err := browser.New(browser.Options{
		Headless:      cfg.Browser.Headless,
		Locale:        cfg.Browser.Locale,
		ActionTimeout: timeout,
		MinDelay:      minDelay,
		MaxDelay:      maxDelay,
	})
	if err != nil {
		return err
	}
	defer drv.Close()

	var results []scraper.TermResult
	if f.useTUI {
		results, err = tui.RunCollect(terms, func(ctx context.Context, stats *scraper.Stats, onEvent func(scraper.Event)) ([]scraper.TermResult, error) {
			opts.Stats = stats
			opts.OnEvent = onEvent
			opts.SuppressStderr = true
			return scraper.Run(ctx, drv, terms, loader, saver, logger, opts)
		})
	} else {
		results, err = scraper.Run(ctx, drv, terms, loader, saver, logger, opts)
	}

	scraper.Summary(os.Stderr, results)
	rememberResults(results, logger)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Int("terms", len(results)).Msg("session end")
	return nil
}

// applyFlags overrides the loaded config with the flags given explicitly.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, f collectFlags) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		v := fl.Value.String()
		switch fl.Name {
		case "s":
			cfg.Terms = []string{f.term}
		case "input":
			cfg.Input = v
			if !isSet(fs, "s") {
				cfg.Terms = nil
			}
		case "total", "t":
			_, err = fmt.Sscan(v, &cfg.Total)
		case "output":
			cfg.Output = v
		case "headless":
			cfg.Browser.Headless = v == "true"
		case "strict-key":
			if f.strictKey {
				cfg.Key = "strict"
			}
		case "sqlite":
			cfg.Storage.SQLite = v
		case "postgres":
			cfg.Storage.Postgres = v
		case "geocode":
			cfg.Geocode.Enabled = v == "true"
		case "log-level":
			cfg.Logging.Level = v
		}
	})
	return err
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func newSaver(ctx context.Context, cfg *config.Config, layout storage.Layout, logger *log.Logger) (*storage.Saver, error) {
	var extra []storage.Sink
	if cfg.Storage.SQLite != "" {
		s, err := storage.NewSQLiteStore(cfg.Storage.SQLite)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite mirror: %w", err)
		}
		extra = append(extra, s)
	}
	if cfg.Storage.Postgres != "" {
		p, err := storage.NewPostgresStore(ctx, cfg.Storage.Postgres)
		if err != nil {
			for _, s := range extra {
				s.Close()
			}
			return nil, fmt.Errorf("opening postgres mirror: %w", err)
		}
		extra = append(extra, p)
	}
	return storage.NewSaver(layout, logger, extra...), nil
}

func newGeocoder(cfg *config.Config) *geo.PlusCodeGeocoder {
	client := httpx.NewClient(httpx.Options{
		UserAgent: cfg.Geocode.UserAgent,
		ProxyURL:  cfg.Geocode.ProxyURL,
	})
	return &geo.PlusCodeGeocoder{
		Resolver:    geo.NewNominatim(client, cfg.Geocode.NominatimURL),
		MaxDistance: cfg.Geocode.MaxDistanceKM * 1000,
	}
}

func rememberResults(results []scraper.TermResult, logger *log.Logger) {
	store := tui.DefaultRecentStore()
	for _, r := range results {
		if len(r.Files) == 0 {
			continue
		}
		if err := store.Add(tui.RecentEntry{Path: r.Files[0], Term: r.Term, Records: r.Total}); err != nil {
			logger.Debug().Err(err).Msg("could not update recent datasets")
		}
	}
}
