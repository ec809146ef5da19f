// Package rate throttles operations per key, such as outbound requests per
// RPC method.
package rate

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) bool
}

type localLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalLimiter returns an in memory limiter allowing perSecond operations
// per key, with bursts of up to perSecond (at least one).
func NewLocalLimiter(perSecond float64) Limiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return &localLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *localLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// NoLimiter never limits operations.
type NoLimiter struct{}

func (NoLimiter) Allow(string) bool { return true }
