// Package throttle provides the shared request budget for outbound
// model and vector-store calls. Concurrent pipeline fan-out acquires
// from one token bucket instead of sleeping between calls.
package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter allows ratePerSecond sustained calls with the given burst.
// Non-positive values disable throttling.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 || burst <= 0 {
		return &Limiter{}
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.bucket == nil {
		return ctx.Err()
	}
	return l.bucket.Wait(ctx)
}
