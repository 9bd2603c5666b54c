package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces calls to at most perMinute per minute by spacing them a
// fixed interval apart. The first call passes immediately.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	nextAt   time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute. perMinute < 1 disables pacing.
func NewRateLimiter(perMinute int) *RateLimiter {
	var interval time.Duration
	if perMinute > 0 {
		interval = time.Minute / time.Duration(perMinute)
	}
	return &RateLimiter{interval: interval}
}

// Wait blocks until the caller's slot arrives or the context is cancelled.
// Each caller reserves the next slot before sleeping, so concurrent callers
// are spaced out rather than released together.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval <= 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := time.Now()
	slot := rl.nextAt
	if slot.Before(now) {
		slot = now
	}
	rl.nextAt = slot.Add(rl.interval)
	rl.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
