// Package ratelimiter throttles inbound WebDAV requests with token buckets.
//
// Two limiters are provided:
//   - RateLimiter: a single bucket shared by every caller
//   - ClientLimiter: one bucket per client key (typically the remote host)
//
// Both wrap golang.org/x/time/rate and are safe for concurrent use.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// unlimitedRate is used when a zero rate is configured.
// rate.Inf skips burst accounting entirely, which makes Tokens() meaningless,
// so a very large finite rate is used instead.
const unlimitedRate = 1_000_000_000

// RateLimiter is a single token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained with the
// given burst. A zero rate disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	return &RateLimiter{limiter: newLimiter(requestsPerSecond, burst)}
}

func newLimiter(requestsPerSecond, burst uint) *rate.Limiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimitedRate
		burst = unlimitedRate
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))
}

// Allow reports whether a request may proceed now, consuming one token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. A zero rate disables limiting.
func (r *RateLimiter) SetLimit(requestsPerSecond uint) {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimitedRate
	}
	r.limiter.SetLimit(rate.Limit(requestsPerSecond))
}

// Tokens returns the number of tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// ============================================================================
// Per-client limiting
// ============================================================================

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps an independent bucket per client key.
//
// Buckets that have not been used for idleTTL are dropped on the next call to
// Prune, so the map does not grow without bound behind a NAT or a scanner.
type ClientLimiter struct {
	mu                sync.Mutex
	clients           map[string]*clientEntry
	requestsPerSecond uint
	burst             uint
	idleTTL           time.Duration
	now               func() time.Time
}

// NewClientLimiter creates a per-client limiter. A zero rate disables limiting.
func NewClientLimiter(requestsPerSecond, burst uint, idleTTL time.Duration) *ClientLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &ClientLimiter{
		clients:           make(map[string]*clientEntry),
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		idleTTL:           idleTTL,
		now:               time.Now,
	}
}

// Allow reports whether the client identified by key may proceed now.
func (c *ClientLimiter) Allow(key string) bool {
	if c.requestsPerSecond == 0 {
		return true
	}

	c.mu.Lock()
	entry, ok := c.clients[key]
	if !ok {
		entry = &clientEntry{limiter: newLimiter(c.requestsPerSecond, c.burst)}
		c.clients[key] = entry
	}
	entry.lastSeen = c.now()
	limiter := entry.limiter
	c.mu.Unlock()

	return limiter.Allow()
}

// Prune drops buckets idle for longer than the configured TTL and returns
// how many were removed.
func (c *ClientLimiter) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.idleTTL)
	removed := 0
	for key, entry := range c.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(c.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (c *ClientLimiter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
