package utils

import (
	"context"
	"math/rand"
	"time"
)

// RandomDelay sleeps for a random duration between min and max, or until
// ctx is done. Fixed delays are an easy pattern for bot detection.
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	if max <= min {
		return Sleep(ctx, min)
	}
	diff := max - min
	return Sleep(ctx, min+time.Duration(rand.Int63n(int64(diff))))
}

// Sleep waits for d or returns ctx.Err() if ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
