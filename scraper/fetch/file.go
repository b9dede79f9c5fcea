package fetch

import (
	"context"
	"fmt"
	"os"

	"yelp-scraper/utils"
)

// FileFetcher answers every request with the contents of one saved page.
// It backs debug runs so extraction can be exercised without network access.
type FileFetcher struct {
	path string
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

func (f *FileFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read fixture %s: %w", f.path, err)
	}
	utils.Debug("Serving %s from fixture %s", targetURL, f.path)
	return string(raw), nil
}
