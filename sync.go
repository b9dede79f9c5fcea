package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"yelp-scraper/config"
	"yelp-scraper/services"
	"yelp-scraper/storage"
	"yelp-scraper/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSyncCmd(out io.Writer, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-db [csv]",
		Short: "Copies the rows of an existing CSV into the configured SQL stores.",
		Long: "Reads a CSV written by the scraper and merges it into the stores named by DATABASE_URL and SQLITE_PATH.\n" +
			"Rows already in a store are kept.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), out, *flags, args[0])
		},
	}
}

func runSync(ctx context.Context, out io.Writer, flags rootFlags, csvPath string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	utils.SetDebug(flags.debug || cfg.Debug)

	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		return errors.New("nothing to sync into: set DATABASE_URL or SQLITE_PATH")
	}

	csvStore := storage.NewCSVStore(csvPath)
	if !csvStore.Exists() {
		return fmt.Errorf("%s does not exist", csvPath)
	}
	listings, err := csvStore.Listings()
	if err != nil {
		return err
	}
	utils.Info("Loaded %d rows from %s", len(listings), csvPath)

	stores, closeStores, err := openStores(ctx, cfg, uuid.New())
	if err != nil {
		return err
	}
	defer closeStores()

	cleaner := services.Cleaner{NormalizePhones: cfg.NormalizePhones, PhoneRegion: cfg.PhoneRegion}
	if err := stores.Merge(ctx, cleaner.Clean(listings)); err != nil {
		return err
	}

	for name, n := range stores.Added() {
		fmt.Fprintf(out, "%s: %d new rows\n", name, n)
	}
	return nil
}
