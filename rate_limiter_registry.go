package websmith

import (
	"strings"
	"sync"
)

// GroupKeyFunc maps a request path onto a logical endpoint group.
type GroupKeyFunc func(path string) string

// RateLimiterRegistry holds one RateLimiter per endpoint group (business,
// website, media, ...) plus an optional fallback for unregistered groups.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
	keyFunc  GroupKeyFunc
	fallback *RateLimiter
}

// NewRateLimiterRegistry creates a registry. A nil keyFunc uses DefaultGroupKeyFunc.
func NewRateLimiterRegistry(keyFunc GroupKeyFunc, fallback *RateLimiter) *RateLimiterRegistry {
	if keyFunc == nil {
		keyFunc = DefaultGroupKeyFunc
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// Register adds or replaces the limiter for group.
func (r *RateLimiterRegistry) Register(group string, limiter *RateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[group] = limiter
}

// Limiter returns the limiter responsible for path and the group it resolved
// to. Unregistered groups get the fallback (reported as "default"); the
// returned limiter is nil when there is none.
func (r *RateLimiterRegistry) Limiter(path string) (*RateLimiter, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.keyFunc(path)
	if limiter, ok := r.limiters[group]; ok {
		return limiter, group
	}
	return r.fallback, "default"
}

// Groups returns a snapshot of the registered group limiters.
func (r *RateLimiterRegistry) Groups() map[string]*RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*RateLimiter, len(r.limiters))
	for k, v := range r.limiters {
		out[k] = v
	}
	return out
}

// Fallback returns the limiter used for unregistered groups.
func (r *RateLimiterRegistry) Fallback() *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// DefaultGroupKeyFunc uses the first path segment, so "/media/42/variants"
// belongs to group "media". Absolute URLs are reduced to their path first.
func DefaultGroupKeyFunc(path string) string {
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.IndexByte(path, '/'); j >= 0 {
			path = path[j:]
		} else {
			path = "/"
		}
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

// SetFallback replaces the limiter used for unregistered groups.
func (r *RateLimiterRegistry) SetFallback(limiter *RateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = limiter
}

// SetKeyFunc replaces the path-to-group mapping. A nil fn restores the default.
func (r *RateLimiterRegistry) SetKeyFunc(fn GroupKeyFunc) {
	if fn == nil {
		fn = DefaultGroupKeyFunc
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyFunc = fn
}
