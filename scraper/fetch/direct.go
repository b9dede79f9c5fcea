package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"yelp-scraper/utils"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// DirectFetcher requests pages straight from the site with a browser-like
// header set. It works for fixtures and mirrors; the live site usually
// needs ScrapflyFetcher or ChromeFetcher.
type DirectFetcher struct {
	client     *resty.Client
	maxRetries int
	backoff    time.Duration
}

type DirectOptions struct {
	Timeout          time.Duration
	MaxRetries       int
	Backoff          time.Duration
	BypassCloudflare bool
	UserAgent        string
	// Transport overrides the base round tripper, mainly for tests.
	Transport http.RoundTripper
}

func NewDirectFetcher(opts DirectOptions) *DirectFetcher {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.BypassCloudflare {
		transport = cloudflarebp.AddCloudFlareByPass(transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = utils.RandomUserAgent()
	}

	client := resty.New().
		SetTransport(transport).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-CA,en;q=0.9")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &DirectFetcher{client: client, maxRetries: opts.MaxRetries, backoff: opts.Backoff}
}

func (f *DirectFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	var html string
	err := utils.Retry(ctx, f.maxRetries, f.backoff, func() error {
		resp, err := f.client.R().SetContext(ctx).Get(targetURL)
		if err != nil {
			return fmt.Errorf("get %s: %w", targetURL, err)
		}
		if resp.IsError() {
			err := fmt.Errorf("get %s: status %d", targetURL, resp.StatusCode())
			if isPermanentStatus(resp.StatusCode()) {
				return fmt.Errorf("%w: %w", utils.ErrPermanent, err)
			}
			return err
		}
		html = resp.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return html, nil
}
