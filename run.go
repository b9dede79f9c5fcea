package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"yelp-scraper/config"
	"yelp-scraper/scraper/fetch"
	"yelp-scraper/scraper/yelp"
	"yelp-scraper/services"
	"yelp-scraper/storage"
	"yelp-scraper/utils"

	"github.com/google/uuid"
)

func runScrape(ctx context.Context, in io.Reader, out io.Writer, flags rootFlags, query, location, csvPath string) error {
	if err := validateFlags(flags); err != nil {
		return err
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	csvStore := storage.NewCSVStore(csvPath)
	printBanner(out, cfg, query, location, csvStore)

	if !flags.yes {
		ok, err := confirm(bufio.NewReader(in), out, "Please confirm: would you like to proceed?", false)
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}
	}
	utils.Info("Proceeding...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New()

	fetcher, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	stores, closeStores, err := openStores(ctx, cfg, runID)
	if err != nil {
		return err
	}
	defer closeStores()
	stores.Add("csv", csvStore)

	cleaner := services.Cleaner{NormalizePhones: cfg.NormalizePhones, PhoneRegion: cfg.PhoneRegion}
	crawler := yelp.NewCrawler(fetcher, stores, yelp.CrawlerOptions{
		BaseURL:  cfg.BaseURL,
		PageSize: cfg.PageSize,
		MaxPages: cfg.MaxPages,
		Schema:   schemaFor(cfg),
		Clean:    cleaner.Clean,
		RunID:    runID.String(),
	})

	state, err := crawler.Run(ctx, query, location, flags.start)
	services.PrintSummary(out, state, stores.Added())
	if err != nil {
		return err
	}

	if cfg.MaxPages > 0 && state.Offset < state.TotalResults {
		utils.Success("Scraped %d of %d results into csv %s", state.Offset, state.TotalResults, csvPath)
		return nil
	}
	utils.Success("Successfully scraped all %d results into csv %s", state.TotalResults, csvPath)
	return nil
}

// loadConfig layers the command-line flags over config.Load.
func loadConfig(flags rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Debug = true
	}
	if flags.fetcher != "" {
		cfg.Fetcher = flags.fetcher
	}
	if flags.maxPages > 0 {
		cfg.MaxPages = flags.maxPages
	}
	if cfg.Debug {
		if flags.fetcher == "" {
			cfg.Fetcher = config.FetcherFile
		}
		cfg.MaxPages = 1
	}
	utils.SetDebug(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printBanner(out io.Writer, cfg *config.Config, query, location string, csvStore *storage.CSVStore) {
	debug := "OFF."
	if cfg.Debug {
		debug = "ON."
	}
	exists := "Does not exist yet."
	if csvStore.Exists() {
		exists = "ALREADY EXISTS. Appending to EXISTING csv!"
	}

	fmt.Fprintln(out, "=============THIS IS THE YELP SCRAPER============")
	fmt.Fprintf(out, "Scraping from yelp: [%s] in location [%s], to be saved in csv [%s].\n", query, location, csvStore.Path())
	fmt.Fprintf(out, "Debug mode is %s\n", debug)
	fmt.Fprintf(out, "Fetcher: %s\n", cfg.Fetcher)
	fmt.Fprintf(out, "File %s %s\n", csvStore.Path(), exists)
}

func schemaFor(cfg *config.Config) yelp.PageSchema {
	schema := yelp.DefaultSchema()
	if len(cfg.ComponentsPath) > 0 {
		schema.ComponentsPath = cfg.ComponentsPath
	}
	if cfg.ProfileBaseURL != "" {
		schema.ProfileBaseURL = cfg.ProfileBaseURL
	}
	return schema
}

func newFetcher(cfg *config.Config) (yelp.Fetcher, func(), error) {
	noop := func() {}

	switch cfg.Fetcher {
	case config.FetcherScrapfly:
		f, err := fetch.NewScrapflyFetcher(fetch.ScrapflyOptions{
			APIURL:     cfg.ScrapflyAPIURL,
			APIKey:     cfg.APIKey(),
			Tags:       cfg.ScrapflyTags,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
		})
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil

	case config.FetcherDirect:
		return fetch.NewDirectFetcher(fetch.DirectOptions{
			Timeout:          cfg.RequestTimeout,
			MaxRetries:       cfg.MaxRetries,
			Backoff:          cfg.RetryBackoff,
			BypassCloudflare: cfg.BypassCloudflare,
		}), noop, nil

	case config.FetcherChrome:
		f := fetch.NewChromeFetcher(fetch.ChromeOptions{
			Headless:   cfg.Headless,
			Timeout:    cfg.RequestTimeout,
			MinDelay:   cfg.MinDelay,
			MaxDelay:   cfg.MaxDelay,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
		})
		return f, func() { f.Close() }, nil

	case config.FetcherFile:
		return fetch.NewFileFetcher(cfg.DebugFixture), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
}

// openStores opens the optional SQL stores named by the config. The caller
// adds the CSV store itself.
func openStores(ctx context.Context, cfg *config.Config, runID uuid.UUID) (*storage.MultiStore, func(), error) {
	stores := storage.NewMultiStore()
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				utils.Warn("Close store: %v", err)
			}
		}
	}

	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, runID)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		stores.Add("postgres", pg)
		utils.Success("PostgreSQL store ready")
	}

	if cfg.SQLitePath != "" {
		lite, err := storage.NewSQLiteStore(cfg.SQLitePath, runID.String())
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, lite.Close)
		stores.Add("sqlite", lite)
		utils.Success("SQLite store ready at %s", cfg.SQLitePath)
	}

	return stores, closeAll, nil
}
