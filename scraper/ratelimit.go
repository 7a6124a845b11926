package scraper

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimiter gates fetch attempts on two axes shared across all workers:
// a ceiling on concurrently in-flight requests and a minimum inter-request
// spacing. Every attempt, retries included, re-acquires.
type RateLimiter struct {
	slots *semaphore.Weighted
	pace  *rate.Limiter
}

// NewRateLimiter allows at most concurrency in-flight requests and
// requestsPerSec sustained request rate.
func NewRateLimiter(concurrency int, requestsPerSec float64) *RateLimiter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RateLimiter{
		slots: semaphore.NewWeighted(int64(concurrency)),
		pace:  rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

// Acquire blocks until a concurrency slot is free and the pacing bucket
// permits another request. On success the caller owns a slot and must
// Release it after the request completes.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := l.pace.Wait(ctx); err != nil {
		l.slots.Release(1)
		return err
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *RateLimiter) Release() {
	l.slots.Release(1)
}
