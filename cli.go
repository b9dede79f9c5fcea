package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	yes        bool
	start      int
	maxPages   int
	fetcher    string
	configPath string
	debug      bool
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "yelp-scraper [search query] [location] [output csv]",
		Short: "Scrapes Yelp search results into a deduplicated CSV.",
		Long: "Walks every result page of a Yelp search and merges the businesses into a CSV keyed by bizId.\n" +
			"Rows already in the CSV are never overwritten.",
		Args:          searchArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), in, out, flags, args[0], args[1], args[2])
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&flags.yes, "yes", "y", false, "skip the confirmation prompt")
	f.IntVar(&flags.start, "start", 0, "result offset to start from, for resuming a halted crawl")
	f.IntVar(&flags.maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	f.StringVar(&flags.fetcher, "fetcher", "", "page fetcher: scrapfly, direct, chrome or file")

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "json5 config file layered over the defaults")
	pf.BoolVar(&flags.debug, "debug", false, "debug mode: test API key, fixture page, single page")

	cmd.AddCommand(newSyncCmd(out, &flags))
	return cmd
}

func searchArgs(cmd *cobra.Command, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("invalid inputs: want [search query] [location] [output csv], got %d argument(s)", len(args))
	}
	for i, name := range []string{"search query", "location", "output csv"} {
		if strings.TrimSpace(args[i]) == "" {
			return fmt.Errorf("invalid inputs: %s must not be empty", name)
		}
	}
	return nil
}

func validateFlags(flags rootFlags) error {
	if flags.start < 0 {
		return errors.New("--start must not be negative")
	}
	if flags.maxPages < 0 {
		return errors.New("--max-pages must not be negative")
	}
	return nil
}
