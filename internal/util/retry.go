package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, up to maxAttempts times, doubling the
// delay between attempts starting from baseDelay. The error from the final
// attempt is returned when every attempt fails; cancellation between attempts
// returns the context error.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
