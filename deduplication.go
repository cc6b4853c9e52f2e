package websmith

import (
	"context"
	"time"

	"github.com/pcak20/websmith-frontend-v2-sub001/internal/singleflight"
)

// DefaultDeduplicationTTL is how long a settled request stays shareable.
const DefaultDeduplicationTTL = 5 * time.Second

var errSharedCallPanicked = singleflight.ErrPanicked

// RequestDeduplicator collapses concurrent identical calls into one. The entry
// for a key is kept for ttl after the call settles, so a caller arriving in
// that window receives the settled result instead of starting a new call.
type RequestDeduplicator struct {
	ttl   time.Duration
	group *singleflight.Group
	now   func() time.Time
}

// NewRequestDeduplicator creates a deduplicator. A non-positive ttl falls back to 5s.
func NewRequestDeduplicator(ttl time.Duration) *RequestDeduplicator {
	if ttl <= 0 {
		ttl = DefaultDeduplicationTTL
	}
	d := &RequestDeduplicator{
		ttl: ttl,
		now: time.Now,
	}
	d.group = singleflight.New(ttl, func() time.Time { return d.now() })
	return d
}

// Dedupe runs fn unless a call for key is already pending, in which case it
// waits for that call and returns its result. shared reports whether the result
// came from another caller's call. All sharers see the identical error value.
// A caller whose ctx ends first, the one that started the call included,
// returns ctx.Err() while the shared call keeps running for the others.
func (d *RequestDeduplicator) Dedupe(ctx context.Context, key string, fn func(context.Context) (any, error)) (val any, shared bool, err error) {
	return d.group.Do(ctx, key, fn)
}

// Forget drops key so the next identical call goes to the network.
func (d *RequestDeduplicator) Forget(key string) {
	d.group.Forget(key)
}

// Pending returns the number of tracked keys, in flight or settled within ttl.
func (d *RequestDeduplicator) Pending() int {
	return d.group.Len()
}

// Clear forgets every tracked key. Callers already waiting still receive their result.
func (d *RequestDeduplicator) Clear() {
	d.group.Reset()
}

// Cleanup removes entries started more than ttl ago, including calls that
// never settled, and returns how many were removed.
func (d *RequestDeduplicator) Cleanup() int {
	return d.group.Expire()
}

// TTL returns the post-settlement retention period.
func (d *RequestDeduplicator) TTL() time.Duration {
	return d.ttl
}
