package taskqueue

import (
	"time"

	"golang.org/x/time/rate"
)

// DispatchLimiter protects the Trigger Sink's downstream HTTP endpoint from
// a burst of simultaneously-due tasks (e.g. many users sharing a preferred
// hour). One limiter guards the whole process — there is no per-user or
// per-tenant bucket, since a single controller serves one population.
type DispatchLimiter struct {
	limiter *rate.Limiter
}

// NewDispatchLimiter builds a token bucket allowing r dispatches/second
// with burst capacity b.
func NewDispatchLimiter(r float64, b int) *DispatchLimiter {
	return &DispatchLimiter{limiter: rate.NewLimiter(rate.Limit(r), b)}
}

// Allow reports whether a dispatch may proceed right now.
func (l *DispatchLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Reserve checks permission and, if the bucket is empty, returns the delay
// until a token would be available instead of blocking.
func (l *DispatchLimiter) Reserve() (ok bool, delay time.Duration) {
	r := l.limiter.Reserve()
	d := r.Delay()
	if d > 0 {
		r.Cancel()
		return false, d
	}
	return true, d
}
