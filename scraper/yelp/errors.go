package yelp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch wraps any failure of the fetch collaborator.
	ErrFetch = errors.New("fetch failed")

	// ErrMarkerNotFound means the root-state script element, its assignment
	// marker, or a step of the components path is missing from the page.
	ErrMarkerNotFound = errors.New("embedded page state not found")

	// ErrMalformedEmbed means the embedded literal is not valid JSON.
	ErrMalformedEmbed = errors.New("embedded page state is malformed")

	// ErrMissingTotal means no component reported the total result count.
	ErrMissingTotal = errors.New("total result count not found")

	// ErrNoInnerURL means a redirect wrapper had no inner url parameter.
	ErrNoInnerURL = errors.New("no inner URL found in redirect wrapper")
)

// PathError reports where the components path stopped matching the page.
type PathError struct {
	Path []string
	Step int
	Msg  string
}

func (e *PathError) Error() string {
	if e.Step < 0 || e.Step >= len(e.Path) {
		return fmt.Sprintf("components path %s: %s", strings.Join(e.Path, "."), e.Msg)
	}
	return fmt.Sprintf("components path %s: step %d (%q): %s",
		strings.Join(e.Path, "."), e.Step, e.Path[e.Step], e.Msg)
}

func (e *PathError) Unwrap() error {
	return ErrMarkerNotFound
}

// CrawlError halts a crawl. Offset is the page that failed, so a re-run
// started there resumes without re-scraping completed pages.
type CrawlError struct {
	Offset       int
	TotalResults int
	HasTotal     bool
	Err          error
}

func (e *CrawlError) Error() string {
	if !e.HasTotal {
		return fmt.Sprintf("crawl halted at offset %d (total results unknown): %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("crawl halted at offset %d of %d total results: %v", e.Offset, e.TotalResults, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}
