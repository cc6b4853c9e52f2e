package websmith

import (
	"sync"
	"time"
)

const (
	DefaultRateLimitMaxRequests = 100
	DefaultRateLimitWindow      = time.Minute
)

// RateLimiter bounds request volume over a sliding window. Once the limit is
// reached the limiter blocks every request until blockUntil, one full window
// after the request that tripped it.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    []time.Time
	blocked     bool
	blockUntil  time.Time
	now         func() time.Time
}

// NewRateLimiter creates a sliding-window limiter. Non-positive arguments fall
// back to 100 requests per minute.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultRateLimitMaxRequests
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// CanMakeRequest reports whether a request may be sent now.
func (rl *RateLimiter) CanMakeRequest() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.blocked {
		if now.Before(rl.blockUntil) {
			return false
		}
		rl.blocked = false
		rl.blockUntil = time.Time{}
	}

	rl.prune(now)
	return len(rl.requests) < rl.maxRequests
}

// RecordRequest registers a sent request and trips the block when the window is full.
func (rl *RateLimiter) RecordRequest() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)
	rl.requests = append(rl.requests, now)
	if len(rl.requests) >= rl.maxRequests {
		rl.blocked = true
		rl.blockUntil = now.Add(rl.window)
	}
}

// RemainingRequests returns how many requests fit in the current window.
func (rl *RateLimiter) RemainingRequests() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.blocked && now.Before(rl.blockUntil) {
		return 0
	}
	rl.prune(now)
	remaining := rl.maxRequests - len(rl.requests)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetTime returns when capacity frees up: the end of the block period, or
// the moment the oldest retained request leaves the window. Zero when no
// requests are retained.
func (rl *RateLimiter) ResetTime() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.blocked {
		return rl.blockUntil
	}
	rl.prune(rl.now())
	if len(rl.requests) == 0 {
		return time.Time{}
	}
	return rl.requests[0].Add(rl.window)
}

// Reset clears all limiter state.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.requests = rl.requests[:0]
	rl.blocked = false
	rl.blockUntil = time.Time{}
}

// Limit returns the configured maximum and window.
func (rl *RateLimiter) Limit() (int, time.Duration) {
	return rl.maxRequests, rl.window
}

// prune drops timestamps older than the window. Caller holds rl.mu.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.requests) && !rl.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.requests = append(rl.requests[:0], rl.requests[i:]...)
	}
}
