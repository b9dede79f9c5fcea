package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"yelp-scraper/utils"

	"github.com/go-resty/resty/v2"
)

// ScrapflyFetcher fetches pages through the Scrapfly scrape API with
// anti-scraping protection enabled.
type ScrapflyFetcher struct {
	client     *resty.Client
	apiKey     string
	tags       []string
	maxRetries int
	backoff    time.Duration
}

type ScrapflyOptions struct {
	APIURL     string
	APIKey     string
	Tags       []string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

type scrapflyResponse struct {
	Result struct {
		Content    string `json:"content"`
		StatusCode int    `json:"status_code"`
		Success    bool   `json:"success"`
		Error      *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
	Message string `json:"message"`
}

func NewScrapflyFetcher(opts ScrapflyOptions) (*ScrapflyFetcher, error) {
	if opts.APIKey == "" {
		return nil, errors.New("scrapfly api key must not be empty")
	}
	if opts.APIURL == "" {
		opts.APIURL = "https://api.scrapfly.io"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.APIURL, "/")).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &ScrapflyFetcher{
		client:     client,
		apiKey:     opts.APIKey,
		tags:       opts.Tags,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}, nil
}

func (f *ScrapflyFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	var html string
	err := utils.Retry(ctx, f.maxRetries, f.backoff, func() error {
		var err error
		html, err = f.fetchOnce(ctx, targetURL)
		return err
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

func (f *ScrapflyFetcher) fetchOnce(ctx context.Context, targetURL string) (string, error) {
	var out scrapflyResponse
	req := f.client.R().
		SetContext(ctx).
		SetQueryParam("key", f.apiKey).
		SetQueryParam("url", targetURL).
		SetQueryParam("asp", "true").
		SetResult(&out).
		SetError(&out)
	if len(f.tags) > 0 {
		req.SetQueryParam("tags", strings.Join(f.tags, ","))
	}

	resp, err := req.Get("/scrape")
	if err != nil {
		return "", fmt.Errorf("scrapfly request: %w", err)
	}

	if resp.IsError() {
		err := fmt.Errorf("scrapfly status %d: %s", resp.StatusCode(), scrapflyMessage(out, resp))
		if isPermanentStatus(resp.StatusCode()) {
			return "", fmt.Errorf("%w: %w", utils.ErrPermanent, err)
		}
		return "", err
	}

	if out.Result.StatusCode != 0 && out.Result.StatusCode != http.StatusOK {
		return "", fmt.Errorf("target returned status %d", out.Result.StatusCode)
	}
	if out.Result.Content == "" {
		return "", errors.New("scrapfly returned empty content")
	}

	utils.Debug("Scrapfly fetched %s (%d bytes)", targetURL, len(out.Result.Content))
	return out.Result.Content, nil
}

func scrapflyMessage(out scrapflyResponse, resp *resty.Response) string {
	if out.Result.Error != nil && out.Result.Error.Message != "" {
		return out.Result.Error.Message
	}
	if out.Message != "" {
		return out.Message
	}
	return strings.TrimSpace(resp.String())
}

// isPermanentStatus reports client errors that retrying cannot fix.
// 429 is excluded: the quota window may reopen.
func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
