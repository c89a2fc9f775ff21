package fetcher

import (
	"context"
	"time"
)

// withRetry calls fn up to attempts times, sleeping baseDelay*2^attempt
// between failures. It returns the last error.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(baseDelay << uint(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
