package websmith

import (
	"context"
	"net/http"
	"time"
)

// Params carries query parameters and cache key inputs. Values must be JSON
// serialisable; cyclic or channel/func values cannot be keyed.
type Params map[string]any

// RetryCondition reports whether a failed attempt should be retried.
type RetryCondition func(err error) bool

// Middleware represents a middleware function around the transport call.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option represents a client configuration option.
type Option func(*Client)

// Cleaner is implemented by components that support a periodic sweep of
// expired state. Cleanup returns the number of entries removed.
type Cleaner interface {
	Cleanup() int
}

// SharedCache is a second cache tier shared between processes (for example
// Redis). Payloads are opaque encoded responses.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PerformanceSink receives every record added to a PerformanceMonitor.
type PerformanceSink interface {
	Write(entry PerformanceEntry) error
}
