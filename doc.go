// Package websmith provides the outbound request layer used by the website
// builder's API clients (business, website, media, analytics, template and
// business-auth). It wraps a REST backend with composable resilience primitives:
//
//   - Sliding-window rate limiting with a block period after the limit trips
//   - Bounded TTL + LRU response caching with an optional shared (L2) tier
//   - Request de-duplication (merges concurrent identical in-flight calls)
//   - Retries with capped exponential backoff
//   - Batched processing with per-item failure isolation
//   - A ring-buffer performance monitor and Prometheus metrics
//   - A single normalized error type, *APIError
//
// Every primitive is usable on its own. Client composes them around an
// *http.Client:
//
//	client := websmith.New(
//	    websmith.WithBaseURL("https://api.example.com"),
//	    websmith.WithRateLimiter(100, time.Minute),
//	    websmith.WithCache(100, 5*time.Minute),
//	    websmith.WithDeduplication(5*time.Second),
//	    websmith.WithRetry(websmith.DefaultRetryConfig()),
//	)
//	resp, err := client.Get(ctx, "/websites", websmith.Params{"page": 1})
//
// Periodic cleanup of expired cache and de-duplication entries is not started
// implicitly; create a Janitor and own its Start/Stop lifecycle.
package websmith
