package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks an error that Retry must not retry.
var ErrPermanent = errors.New("permanent failure")

// Retry runs fn up to maxRetries times.
// If fn returns nil (success) it stops immediately.
// If fn keeps failing, it waits longer each attempt (exponential backoff)
// and returns the last error after all attempts are exhausted.
//
// EXPONENTIAL BACKOFF with base = 1s means:
//
//	attempt 1 fails → wait 2 seconds
//	attempt 2 fails → wait 4 seconds
//	attempt 3 fails → wait 8 seconds
//
// Errors wrapping ErrPermanent (an auth failure, a 4xx) are returned at once.
// Cancelling ctx aborts the wait between attempts.
//
// Usage:
//
//	err := utils.Retry(ctx, 3, time.Second, func() error {
//	    return fetcher.fetchOnce(ctx, url)
//	})
func Retry(ctx context.Context, maxRetries int, base time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return lastErr
		}

		if attempt < maxRetries {
			wait := base * time.Duration(1<<uint(attempt))
			Warn("Attempt %d/%d failed: %v, retrying in %v", attempt, maxRetries, lastErr, wait)
			if err := Sleep(ctx, wait); err != nil {
				return fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
			}
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", maxRetries, lastErr)
}
