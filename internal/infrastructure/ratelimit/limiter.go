// Package ratelimit bounds outbound provider calls to a fixed rate shared by
// every caller holding the same Limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits at most Calls permits in any half-open window of length
// Period. Permits are spaced Period/Calls apart with a burst of one, so a
// window can never see more than Calls acquisitions.
type Limiter struct {
	limiter *rate.Limiter
	calls   int
	period  time.Duration
}

// New creates a limiter allowing calls permits per period.
// Non-positive values fall back to 5 per second.
func New(calls int, period time.Duration) *Limiter {
	if calls <= 0 {
		calls = 5
	}
	if period <= 0 {
		period = time.Second
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(calls)), 1),
		calls:   calls,
		period:  period,
	}
}

// Acquire blocks until a permit is available. It only returns an error when
// ctx is cancelled or its deadline cannot accommodate the wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// String describes the configured rate.
func (l *Limiter) String() string {
	return fmt.Sprintf("%d per %s", l.calls, l.period)
}
