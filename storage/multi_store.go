package storage

import (
	"context"
	"fmt"

	"yelp-scraper/models"

	"golang.org/x/sync/errgroup"
)

// Backend is one destination a MultiStore writes to.
type Backend interface {
	Merge(ctx context.Context, listings []models.Listing) error
}

type namedBackend struct {
	name    string
	backend Backend
}

// MultiStore merges each page into several backends at once. Merge returns
// only after every backend has finished, so each backend still receives
// pages one at a time and in crawl order.
//
// A failing backend cancels the others, but a backend may already have
// written the page. After a failed Merge the backends can disagree about that
// page until the crawl is resumed from the reported offset, which is safe
// because every backend keeps the first row per business id.
type MultiStore struct {
	backends []namedBackend
}

func NewMultiStore() *MultiStore {
	return &MultiStore{}
}

func (m *MultiStore) Add(name string, b Backend) {
	m.backends = append(m.backends, namedBackend{name: name, backend: b})
}

func (m *MultiStore) Len() int {
	return len(m.backends)
}

func (m *MultiStore) Merge(ctx context.Context, listings []models.Listing) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, nb := range m.backends {
		g.Go(func() error {
			if err := nb.backend.Merge(gctx, listings); err != nil {
				return fmt.Errorf("%s: %w", nb.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Added reports per-backend new-row counts for backends that track them.
func (m *MultiStore) Added() map[string]int {
	out := make(map[string]int)
	for _, nb := range m.backends {
		if c, ok := nb.backend.(interface{ Added() int }); ok {
			out[nb.name] = c.Added()
		}
	}
	return out
}
