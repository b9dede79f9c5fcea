package yelp

import (
	"context"
	"fmt"

	"yelp-scraper/models"
	"yelp-scraper/utils"

	"github.com/google/uuid"
)

// DefaultPageSize is the number of results the search page serves per offset.
const DefaultPageSize = 10

// Fetcher turns a URL into raw HTML. Retries and timeouts are its business.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// Store persists listings, keeping the first row seen for each business id.
type Store interface {
	Merge(ctx context.Context, listings []models.Listing) error
}

type CrawlerOptions struct {
	BaseURL  string
	PageSize int
	// MaxPages caps the number of pages fetched in one run; 0 means no cap.
	MaxPages int
	Schema   PageSchema
	// Clean runs on every page before it is merged.
	Clean func([]models.Listing) []models.Listing
	RunID string
}

// Crawler walks the result pages of one search strictly in offset order,
// merging each page before fetching the next.
type Crawler struct {
	fetcher   Fetcher
	store     Store
	extractor *Extractor
	opts      CrawlerOptions
}

func NewCrawler(fetcher Fetcher, store Store, opts CrawlerOptions) *Crawler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if len(opts.Schema.ComponentsPath) == 0 {
		opts.Schema = DefaultSchema()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Crawler{
		fetcher:   fetcher,
		store:     store,
		extractor: NewExtractor(opts.Schema),
		opts:      opts,
	}
}

// Run crawls query/location from startOffset until the reported total is
// covered. On failure the returned state and *CrawlError carry the offset
// that failed so a later run can resume there.
//
// Cancelling ctx stops the crawl between pages; a fetch already in flight is
// left to the fetcher.
func (c *Crawler) Run(ctx context.Context, query, location string, startOffset int) (models.CrawlState, error) {
	if startOffset < 0 {
		startOffset = 0
	}
	state := models.CrawlState{
		RunID:    c.opts.RunID,
		Query:    query,
		Location: location,
		Offset:   startOffset,
		Phase:    models.PhaseStart,
	}

	for {
		if err := ctx.Err(); err != nil {
			return c.fail(state, err)
		}

		state.Phase = models.PhaseFetchingPage
		target := SearchURL(c.opts.BaseURL, query, location, state.Offset)
		utils.Info("Scraping %s", target)

		html, err := c.fetcher.Fetch(ctx, target)
		if err != nil {
			return c.fail(state, fmt.Errorf("%w: %w", ErrFetch, err))
		}

		result, err := c.extractor.Extract(html)
		if err != nil {
			return c.fail(state, fmt.Errorf("extract offset %d: %w", state.Offset, err))
		}
		state.PagesFetched++

		if !state.HasTotal {
			state.TotalResults = result.TotalResults
			state.HasTotal = true
			utils.Info("Total results to scrape: %d", state.TotalResults)
		} else if result.TotalResults != state.TotalResults {
			utils.Warn("Offset %d reports %d total results, keeping %d", state.Offset, result.TotalResults, state.TotalResults)
		}
		state.Phase = models.PhaseHaveTotal

		listings := result.Listings
		if c.opts.Clean != nil {
			listings = c.opts.Clean(listings)
		}
		if err := c.store.Merge(ctx, listings); err != nil {
			return c.fail(state, fmt.Errorf("merge offset %d: %w", state.Offset, err))
		}
		state.ListingsSeen += len(listings)
		utils.Success("Scraped %q in %q results #%d to #%d (%d listings)",
			query, location, state.Offset, state.Offset+c.opts.PageSize, len(listings))

		if state.Offset+c.opts.PageSize >= state.TotalResults {
			state.Phase = models.PhaseDone
			return state, nil
		}
		if c.opts.MaxPages > 0 && state.PagesFetched >= c.opts.MaxPages {
			utils.Warn("Stopping after %d pages; resume with --start %d", state.PagesFetched, state.Offset+c.opts.PageSize)
			state.Offset += c.opts.PageSize
			state.Phase = models.PhaseDone
			return state, nil
		}
		state.Offset += c.opts.PageSize
	}
}

func (c *Crawler) fail(state models.CrawlState, err error) (models.CrawlState, error) {
	state.Phase = models.PhaseFailed
	return state, &CrawlError{
		Offset:       state.Offset,
		TotalResults: state.TotalResults,
		HasTotal:     state.HasTotal,
		Err:          err,
	}
}
