// Package ratelimit provides a per-client token bucket limiter for the
// API surface.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client key (usually remote IP).
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client

	limit  rate.Limit
	burst  int
	window time.Duration
	now    func() time.Time
}

// New builds a Limiter that admits maxRequests per window per key, with
// bursts up to the full allowance.
func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:   maxRequests,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether the key may proceed. When denied it returns how
// long the caller should wait before retrying.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = l.now()
	if len(l.clients) > 1024 {
		l.pruneLocked()
	}
	l.mu.Unlock()

	res := c.limiter.Reserve()
	if !res.OK() {
		return false, l.window
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Prune drops buckets idle for longer than the window. Buckets refill to
// full within one window, so an idle bucket carries no state worth keeping.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked()
}

func (l *Limiter) pruneLocked() int {
	cutoff := l.now().Add(-l.window)
	pruned := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			pruned++
		}
	}
	return pruned
}
