package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EndpointLimiter enforces a minimum gap between requests to the same
// backend endpoint group (e.g. "jd", "jobs", "resume").
type EndpointLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewEndpointLimiter creates a limiter that spaces consecutive requests to
// one endpoint group by minDelay, or by the group's override when present.
// A zero delay disables limiting for that group.
func NewEndpointLimiter(minDelay time.Duration, overrides map[string]time.Duration) *EndpointLimiter {
	return &EndpointLimiter{
		limiters:  make(map[string]*rate.Limiter),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

func (r *EndpointLimiter) limiterFor(endpoint string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[endpoint]; ok {
		return l
	}
	delay := r.minDelay
	if d, ok := r.overrides[endpoint]; ok {
		delay = d
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	l := rate.NewLimiter(limit, 1)
	r.limiters[endpoint] = l
	return l
}

// Wait blocks until a request to endpoint may proceed.
// Returns an error if the context is cancelled while waiting.
func (r *EndpointLimiter) Wait(ctx context.Context, endpoint string) error {
	if err := r.limiterFor(endpoint).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", endpoint, err)
	}
	return nil
}
