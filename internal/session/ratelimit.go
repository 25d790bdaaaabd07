package session

import (
	"sync"
	"time"
)

// DefaultRateLimit is the default inbound message budget per spec
// §4.H: "Per-session inbound rate limit (default 60 messages/min)."
const DefaultRateLimit = 60

// rateLimiter is a fixed-window counter over a rolling minute. No
// library in the example pack covers inbound message rate limiting
// (connection.go enforces none at all); this is hand-rolled on
// stdlib time rather than left unenforced, since spec §4.H and §5
// both require a session to be closed once it exceeds the budget.
type rateLimiter struct {
	mu          sync.Mutex
	limit       int
	windowStart time.Time
	count       int
	now         func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &rateLimiter{limit: limit, now: time.Now, windowStart: time.Now()}
}

// Allow reports whether one more inbound message fits this minute's
// budget, advancing to a fresh window once a minute has elapsed.
func (r *rateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.count = 0
	}
	if r.count >= r.limit {
		return false
	}
	r.count++
	return true
}
