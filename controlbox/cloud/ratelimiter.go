package cloud

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter bounds outbound calls per endpoint key, directly adapted from
// the teacher's scheduler.TokenBucketLimiter: a map of golang.org/x/time/rate
// limiters keyed by a string, lazily created. Here the keys are endpoint
// names ("ping", "psem", "tsem", "rfid-validate", "rfid-mark-used",
// "report-emergency", "pedestrian-log")
// rather than node/tenant IDs, so one noisy phase cycle of RFID reads can't
// flood the management service while an emergency report still gets through.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewRateLimiter builds a limiter admitting r calls/sec per key, with burst b.
func NewRateLimiter(r float64, b int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Allow reports whether a call under key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = lim
	}
	return lim.Allow()
}
