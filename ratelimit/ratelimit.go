// Package ratelimit throttles outgoing API requests to a configured rate.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket rate limiter. Permits refill steadily at
// permits-per-window so at most `permits` acquisitions succeed per rolling
// window. A Limiter is safe for concurrent use; permits are strictly
// accounted, and an Acquire cancelled mid-wait consumes nothing.
type Limiter struct {
	rl      *rate.Limiter
	permits int
	window  time.Duration
}

// New creates a limiter allowing permits acquisitions per window.
// permits < 1 is treated as 1.
func New(permits int, window time.Duration) *Limiter {
	if permits < 1 {
		permits = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		rl:      rate.NewLimiter(rate.Limit(float64(permits)/window.Seconds()), permits),
		permits: permits,
		window:  window,
	}
}

// Default returns a limiter with conservative settings (2 requests per
// second) that stay under every supported site's threshold.
func Default() *Limiter {
	return New(2, time.Second)
}

// Acquire blocks cooperatively until a permit is available, then consumes
// one. If ctx is cancelled while waiting, the pending permit is returned
// to the bucket and the context's error is reported.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// TryAcquire consumes a permit if one is immediately available.
func (l *Limiter) TryAcquire() bool {
	return l.rl.Allow()
}

// Available returns the number of permits currently available.
func (l *Limiter) Available() int {
	if n := int(l.rl.Tokens()); n > 0 {
		return n
	}
	return 0
}

// Permits returns the configured permit count per window.
func (l *Limiter) Permits() int { return l.permits }

// Window returns the configured refill window.
func (l *Limiter) Window() time.Duration { return l.window }
