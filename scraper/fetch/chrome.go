package fetch

import (
	"context"
	"fmt"
	"time"

	"yelp-scraper/utils"

	"github.com/chromedp/chromedp"
)

// ChromeFetcher renders pages in a shared headless Chrome, one tab per fetch.
type ChromeFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	minDelay    time.Duration
	maxDelay    time.Duration
	maxRetries  int
	backoff     time.Duration
	waitFor     string
}

type ChromeOptions struct {
	Headless   bool
	Timeout    time.Duration
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Backoff    time.Duration
	// WaitFor is a CSS selector that must be present before the HTML is read.
	WaitFor string
}

func NewChromeFetcher(opts ChromeOptions) *ChromeFetcher {
	utils.Info("Launching Chrome browser...")
	allocCtx, allocCancel := chromedp.NewExecAllocator(
		context.Background(),
		utils.StealthOpts(opts.Headless, "")...,
	)
	if opts.WaitFor == "" {
		opts.WaitFor = "body"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	utils.Success("Browser ready")

	return &ChromeFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     opts.Timeout,
		minDelay:    opts.MinDelay,
		maxDelay:    opts.MaxDelay,
		maxRetries:  opts.MaxRetries,
		backoff:     opts.Backoff,
		waitFor:     opts.WaitFor,
	}
}

func (f *ChromeFetcher) Close() error {
	utils.Info("Closing browser...")
	f.allocCancel()
	return nil
}

func (f *ChromeFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if err := utils.RandomDelay(ctx, f.minDelay, f.maxDelay); err != nil {
		return "", err
	}

	var html string
	err := utils.Retry(ctx, f.maxRetries, f.backoff, func() error {
		var err error
		html, err = f.render(ctx, targetURL)
		return err
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

func (f *ChromeFetcher) render(ctx context.Context, targetURL string) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, f.timeout)
	defer cancel()

	// Tie the tab to the caller's context as well as the browser's.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(targetURL),
		utils.HideWebDriver(),
		chromedp.WaitReady(f.waitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp failed: %w", err)
	}
	return html, nil
}
