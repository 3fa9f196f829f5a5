// Package ratelimiter caps the multipart orchestrator's upload throughput
// in bytes per second. It wraps golang.org/x/time/rate the same way the
// teacher's internal/ratelimit.BurstLimiter does — a single rate.Limiter
// behind a small typed wrapper — but spends tokens per byte transferred
// (WaitN) rather than per request (Allow), since the orchestrator wants
// to shape throughput, not request rate.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps cumulative upload throughput across every worker in a
// multipart upload.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing up to bytesPerSecond sustained
// throughput, with a burst window of the same size. A bytesPerSecond of
// zero or less means unlimited.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return &Limiter{limiter: nil}
	}
	burst := int(bytesPerSecond)
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// WaitN blocks until n bytes' worth of budget is available or ctx is
// cancelled. A nil-backed Limiter (unlimited) always returns immediately.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	// rate.Limiter rejects a single request larger than its burst, so a
	// part bigger than one second's budget is waited for in burst-sized
	// chunks.
	burst := l.limiter.Burst()
	for n > burst {
		if err := l.limiter.WaitN(ctx, burst); err != nil {
			return err
		}
		n -= burst
	}
	return l.limiter.WaitN(ctx, n)
}

// Unlimited reports whether this Limiter imposes no cap.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter == nil
}
