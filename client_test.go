package websmith

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// memorySharedCache is an in-process SharedCache that counts calls.
type memorySharedCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	sets    int
	deletes int
}

func newMemorySharedCache() *memorySharedCache {
	return &memorySharedCache{data: make(map[string][]byte)}
}

func (m *memorySharedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memorySharedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = data
	return nil
}

func (m *memorySharedCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

func (m *memorySharedCache) counts() (gets, sets, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.sets, m.deletes
}

// countingServer answers with handler and counts the requests it receives.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestNewDefaults(t *testing.T) {
	client := New()

	if !client.IsValid() {
		t.Fatalf("Expected default client to be valid, got %v", client.ValidationError())
	}
	if client.timeout != 30*time.Second || client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", client.timeout)
	}
	if client.Cache() != nil || client.Deduplicator() != nil || client.RateLimiters() != nil {
		t.Error("Expected optional layers to be off by default")
	}
	if client.PerformanceMonitor() == nil {
		t.Error("Expected performance monitor enabled by default")
	}
}

func TestClientConcurrentGetsShareOneCall(t *testing.T) {
	server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		jsonHandler(200, `{"id":1,"name":"Acme"}`)(w, r)
	})
	shared := newMemorySharedCache()

	client := New(
		WithBaseURL(server.URL),
		WithCache(100, time.Minute),
		WithSharedCache(shared),
		WithDeduplication(time.Second),
		WithRateLimiter(10, time.Minute),
	)

	const callers = 5
	bodies := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(context.Background(), "/business/1", nil)
			errs[i] = err
			if resp != nil {
				bodies[i] = string(resp.Body)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("Caller %d failed: %v", i, errs[i])
		}
		if bodies[i] != `{"id":1,"name":"Acme"}` {
			t.Errorf("Caller %d got %q", i, bodies[i])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 network call, got %d", got)
	}
	if _, sets, _ := shared.counts(); sets != 1 {
		t.Errorf("Expected 1 shared cache write, got %d", sets)
	}
	if remaining := client.RateLimiters().Fallback().RemainingRequests(); remaining != 9 {
		t.Errorf("Expected one limiter record for the shared call, %d remaining", remaining)
	}

	resp, err := client.Get(context.Background(), "/business/1", nil)
	if err != nil || !resp.Cached {
		t.Errorf("Expected a cached follow-up response, got %+v (%v)", resp, err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected cached call to skip the network, got %d calls", calls.Load())
	}
}

func TestClientOwnerTimeoutLeavesSharedCallRunning(t *testing.T) {
	server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		jsonHandler(200, `[{"id":1}]`)(w, r)
	})
	client := New(
		WithBaseURL(server.URL),
		WithDeduplication(time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.Get(ctx, "/sites", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected the caller's deadline, got %v", err)
	}

	resp, err := client.Get(context.Background(), "/sites", nil)
	if err != nil {
		t.Fatalf("Expected a healthy caller to get the response, got %v", err)
	}
	if string(resp.Body) != `[{"id":1}]` || !resp.Shared {
		t.Errorf("Expected the shared response body, got %q shared=%v", resp.Body, resp.Shared)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 network call, got %d", calls.Load())
	}
}

func TestClientDoWithInvalidConfig(t *testing.T) {
	client := New(WithDebugConfig(nil))
	if client.IsValid() {
		t.Fatal("Expected nil debug config to be invalid")
	}

	_, err := client.Get(context.Background(), "/sites", nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("Expected an *APIError, got %T", err)
	}
}

func TestClientSharedCacheHit(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(200, `{"ok":true}`))
	shared := newMemorySharedCache()

	first := New(WithBaseURL(server.URL), WithCache(10, time.Minute), WithSharedCache(shared))
	if _, err := first.Get(context.Background(), "/website/9", Params{"lang": "en"}); err != nil {
		t.Fatalf("First client failed: %v", err)
	}

	second := New(WithBaseURL(server.URL), WithCache(10, time.Minute), WithSharedCache(shared))
	resp, err := second.Get(context.Background(), "/website/9", Params{"lang": "en"})
	if err != nil {
		t.Fatalf("Second client failed: %v", err)
	}

	if !resp.Cached || string(resp.Body) != `{"ok":true}` || resp.StatusCode != 200 {
		t.Errorf("Expected shared cache hit, got %+v", resp)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 network call across both clients, got %d", calls.Load())
	}
	if second.Cache().Len() != 1 {
		t.Error("Expected shared hit to be copied into the local tier")
	}
}

func TestClientNoCacheBypass(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(200, `{}`))
	client := New(WithBaseURL(server.URL), WithCache(10, time.Minute))

	client.Get(context.Background(), "/media", nil)
	client.Do(context.Background(), &Request{Path: "/media", NoCache: true})

	if calls.Load() != 2 {
		t.Errorf("Expected NoCache to reach the network, got %d calls", calls.Load())
	}
}

func TestClientInvalidate(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(200, `{}`))
	shared := newMemorySharedCache()
	client := New(WithBaseURL(server.URL), WithCache(10, time.Minute), WithSharedCache(shared))
	ctx := context.Background()

	client.Get(ctx, "/business/1", Params{"expand": true})
	if err := client.Invalidate(ctx, "/business/1", Params{"expand": true}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	client.Get(ctx, "/business/1", Params{"expand": true})

	if calls.Load() != 2 {
		t.Errorf("Expected invalidated entry to be refetched, got %d calls", calls.Load())
	}
	if _, _, deletes := shared.counts(); deletes != 1 {
		t.Errorf("Expected 1 shared cache delete, got %d", deletes)
	}
}

func TestClientRateLimitFailsFast(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(200, `{}`))
	client := New(WithBaseURL(server.URL), WithRateLimiter(1, time.Minute))

	if _, err := client.Get(context.Background(), "/users", nil); err != nil {
		t.Fatalf("First call failed: %v", err)
	}

	_, err := client.Get(context.Background(), "/users", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Kind != KindRateLimited || apiErr.Status != 429 || !errors.Is(err, ErrRateLimited) {
		t.Errorf("Unexpected rate limit error: %+v", apiErr)
	}
	if apiErr.Message != "Too many requests. Please wait before trying again." {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected rate limited call to skip the network, got %d calls", calls.Load())
	}
}

func TestClientGroupRateLimiters(t *testing.T) {
	server, _ := countingServer(t, jsonHandler(200, `{}`))
	client := New(
		WithBaseURL(server.URL),
		WithGroupRateLimiter("media", 1, time.Minute),
		WithRateLimiter(10, time.Minute),
	)
	ctx := context.Background()

	client.Get(ctx, "/media/1", nil)
	if _, err := client.Get(ctx, "/media/2", nil); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected media group exhausted, got %v", err)
	}
	if _, err := client.Get(ctx, "/business/1", nil); err != nil {
		t.Errorf("Expected other groups unaffected, got %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) < 3 {
			jsonHandler(503, `{}`)(w, r)
			return
		}
		jsonHandler(200, `{"done":true}`)(w, r)
	})
	client := New(WithBaseURL(server.URL), WithRetry(fastRetry(3)), WithRateLimiter(10, time.Minute))

	resp, err := client.Get(context.Background(), "/jobs/1", nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(resp.Body) != `{"done":true}` {
		t.Errorf("Unexpected body %q", resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 network calls, got %d", calls.Load())
	}
	if client.PerformanceMonitor().Len() != 1 {
		t.Errorf("Expected one logical request recorded, got %d", client.PerformanceMonitor().Len())
	}
	limiter := client.RateLimiters().Fallback()
	if limiter.RemainingRequests() != 9 {
		t.Errorf("Expected retries to count once against the limiter, %d remaining", limiter.RemainingRequests())
	}
}

func TestClientRetryExhausted(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(500, `{}`))
	client := New(WithBaseURL(server.URL), WithRetry(fastRetry(2)))

	_, err := client.Get(context.Background(), "/jobs", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 500 {
		t.Fatalf("Expected 500 APIError, got %v", err)
	}
	if apiErr.Attempts != 3 || calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d (%d calls)", apiErr.Attempts, calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(400, `{"message":"Email is already taken"}`))
	client := New(WithBaseURL(server.URL), WithRetry(fastRetry(3)))

	_, err := client.Get(context.Background(), "/users", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != 400 || apiErr.Kind != KindHTTP {
		t.Errorf("Unexpected error %+v", apiErr)
	}
	if apiErr.Message != "Email is already taken" {
		t.Errorf("Expected server message, got %q", apiErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected no retries for 400, got %d calls", calls.Load())
	}
}

func TestClientDoesNotRetryPost(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(503, `{}`))
	client := New(WithBaseURL(server.URL), WithRetry(fastRetry(3)))

	if _, err := client.Post(context.Background(), "/orders", map[string]int{"qty": 1}); err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected POST not retried, got %d calls", calls.Load())
	}

	client.Do(context.Background(), &Request{
		Method:         http.MethodPost,
		Path:           "/orders",
		Body:           map[string]int{"qty": 1},
		RetryCondition: DefaultRetryCondition,
	})
	if calls.Load() != 5 {
		t.Errorf("Expected explicit retry condition to retry POST, got %d calls", calls.Load())
	}
}

func TestClientCircuitBreakerOpens(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(500, `{}`))
	client := New(
		WithBaseURL(server.URL),
		WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}),
	)
	ctx := context.Background()

	client.Get(ctx, "/x", nil)
	client.Get(ctx, "/x", nil)

	_, err := client.Get(ctx, "/x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindCircuitOpen {
		t.Fatalf("Expected circuit open error, got %v", err)
	}
	if apiErr.Status != 0 || !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Unexpected circuit open error %+v", apiErr)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected open circuit to skip the network, got %d calls", calls.Load())
	}
	if client.CircuitBreaker().State() != StateOpen {
		t.Error("Expected circuit to be open")
	}
}

func TestClientClientErrorsKeepCircuitClosed(t *testing.T) {
	server, _ := countingServer(t, jsonHandler(404, `{}`))
	client := New(WithBaseURL(server.URL), WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1}))

	client.Get(context.Background(), "/missing", nil)
	client.Get(context.Background(), "/missing", nil)

	if client.CircuitBreaker().State() != StateClosed {
		t.Error("Expected 4xx responses not to open the circuit")
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(WithBaseURL(url))
	_, err := client.Get(context.Background(), "/x", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Kind != KindNetwork || apiErr.Status != 0 {
		t.Errorf("Expected network error, got %+v", apiErr)
	}
	if apiErr.Message != "Network error. Please check your connection." {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
	if apiErr.URL != url+"/x" || apiErr.Method != "GET" {
		t.Errorf("Expected request details on error, got %s %s", apiErr.Method, apiErr.URL)
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("X-Trace"))
	})

	var order []string
	trace := func(name string) Middleware {
		return func(req *http.Request, next RoundTripper) (*http.Response, error) {
			order = append(order, name)
			req.Header.Set("X-Trace", req.Header.Get("X-Trace")+name)
			return next.RoundTrip(req)
		}
	}
	client := New(WithBaseURL(server.URL), WithMiddleware(trace("a"), trace("b")))

	resp, err := client.Get(context.Background(), "/x", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Join(order, ",") != "a,b" || string(resp.Body) != "ab" {
		t.Errorf("Expected middleware a then b, got %v / %q", order, resp.Body)
	}
}

func TestClientHeadersAndAuth(t *testing.T) {
	var got http.Header
	var body string
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusCreated)
	})

	token := "first"
	client := New(
		WithBaseURL(server.URL+"/"),
		WithHeader("X-Client", "websmith"),
		WithAuthToken(func() string { return token }),
	)

	if _, err := client.Post(context.Background(), "/business", map[string]string{"name": "Acme"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Get("Authorization") != "Bearer first" {
		t.Errorf("Expected bearer token, got %q", got.Get("Authorization"))
	}
	if got.Get("X-Client") != "websmith" || got.Get("Accept") != "application/json" || got.Get("Content-Type") != "application/json" {
		t.Errorf("Unexpected headers %v", got)
	}
	if body != `{"name":"Acme"}` {
		t.Errorf("Unexpected body %q", body)
	}

	token = "second"
	client.Delete(context.Background(), "/business/1")
	if got.Get("Authorization") != "Bearer second" {
		t.Errorf("Expected rotated token, got %q", got.Get("Authorization"))
	}
	if got.Get("Content-Type") != "" {
		t.Error("Expected no Content-Type without a body")
	}
}

func TestClientQueryParams(t *testing.T) {
	var rawQuery string
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
	})
	client := New(WithBaseURL(server.URL))

	client.Get(context.Background(), "/search", Params{"q": "shoes", "page": 2, "tags": []string{"a", "b"}, "skip": nil})

	if rawQuery != "page=2&q=shoes&tags=a&tags=b" {
		t.Errorf("Unexpected query %q", rawQuery)
	}
}

func TestClientGetJSON(t *testing.T) {
	server, _ := countingServer(t, jsonHandler(200, `{"id":7,"name":"Site"}`))
	client := New(WithBaseURL(server.URL))

	var site struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := client.GetJSON(context.Background(), "/website/7", nil, &site); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if site.ID != 7 || site.Name != "Site" {
		t.Errorf("Unexpected decode %+v", site)
	}

	bad, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "not json") })
	err := New(WithBaseURL(bad.URL)).GetJSON(context.Background(), "/x", nil, &site)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindUnexpected {
		t.Errorf("Expected unexpected-kind decode error, got %v", err)
	}
}

func TestClientFetchAll(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/2") {
			jsonHandler(404, `{}`)(w, r)
			return
		}
		jsonHandler(200, `{}`)(w, r)
	})
	client := New(WithBaseURL(server.URL), WithBatch(BatchConfig{BatchSize: 2}), WithMetrics())

	reqs := []*Request{{Path: "/media/1"}, {Path: "/media/2"}, {Path: "/media/3"}}
	var reports int
	result := client.FetchAll(context.Background(), reqs, func(BatchProgress) { reports++ })

	if len(result.Results) != 2 || len(result.Errors) != 1 {
		t.Fatalf("Expected 2 results and 1 error, got %d/%d", len(result.Results), len(result.Errors))
	}
	if result.Errors[0].Index != 1 || result.Errors[0].Item != reqs[1] {
		t.Errorf("Unexpected failed record %+v", result.Errors[0])
	}
	if reports != 2 {
		t.Errorf("Expected 2 progress reports, got %d", reports)
	}
	if got := testutil.ToFloat64(client.Metrics().batchItemsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 failed batch item metric, got %v", got)
	}
}

func TestClientMetrics(t *testing.T) {
	server, _ := countingServer(t, jsonHandler(200, `{}`))
	client := New(WithBaseURL(server.URL), WithMetrics(), WithCache(10, time.Minute))
	ctx := context.Background()

	client.Get(ctx, "/users/1", nil)
	client.Get(ctx, "/users/1", nil)

	m := client.Metrics()
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200", "users")); got != 2 {
		t.Errorf("Expected 2 recorded requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("local", "users")); got != 1 {
		t.Errorf("Expected 1 local cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheMisses.WithLabelValues("users")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestsInFlight.WithLabelValues("GET", "users")); got != 0 {
		t.Errorf("Expected nothing in flight, got %v", got)
	}
}

func TestClientDebugLogging(t *testing.T) {
	var requestID string
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
	})
	core, logs := observer.New(zapcore.DebugLevel)
	client := New(
		WithBaseURL(server.URL),
		WithLogger(NewZapLogger(zap.New(core))),
		WithDebug(),
		WithRequestIDGenerator(func() string { return "req-fixed" }),
	)

	client.Get(context.Background(), "/users", nil)

	if requestID != "req-fixed" {
		t.Errorf("Expected X-Request-ID header, got %q", requestID)
	}
	started := logs.FilterMessage("Starting request").All()
	if len(started) != 1 || started[0].ContextMap()["requestID"] != "req-fixed" {
		t.Errorf("Expected a start log carrying the request ID, got %v", started)
	}
	if logs.FilterMessage("Request completed").Len() != 1 {
		t.Error("Expected a completion log")
	}
}

func TestClientNoRequestIDWithoutDebug(t *testing.T) {
	var requestID string
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
	})

	New(WithBaseURL(server.URL)).Get(context.Background(), "/users", nil)

	if requestID != "" {
		t.Errorf("Expected no request ID, got %q", requestID)
	}
}

func TestClientUnencodableParams(t *testing.T) {
	client := New(WithBaseURL("http://example.invalid"))

	_, err := client.Get(context.Background(), "/x", Params{"ch": make(chan int)})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindUnexpected {
		t.Errorf("Expected unexpected-kind error, got %v", err)
	}
}

func TestClientJanitor(t *testing.T) {
	client := New(WithCache(10, time.Minute), WithDeduplication(time.Second))

	j := client.NewJanitor(time.Minute)
	if len(j.targets) != 2 {
		t.Errorf("Expected cache and deduplicator targets, got %d", len(j.targets))
	}
	if j := New().NewJanitor(0); len(j.targets) != 0 {
		t.Errorf("Expected no targets without cache or dedup, got %d", len(j.targets))
	}
}

func TestClientInvalidateForgetsDedupWindow(t *testing.T) {
	server, calls := countingServer(t, jsonHandler(200, `{}`))
	client := New(WithBaseURL(server.URL), WithDeduplication(time.Minute))
	ctx := context.Background()

	client.Get(ctx, "/website/1", nil)
	resp, _ := client.Get(ctx, "/website/1", nil)
	if !resp.Shared || calls.Load() != 1 {
		t.Fatalf("Expected settled result shared within the window, got shared=%v calls=%d", resp.Shared, calls.Load())
	}

	client.Invalidate(ctx, "/website/1", nil)
	client.Get(ctx, "/website/1", nil)
	if calls.Load() != 2 {
		t.Errorf("Expected invalidation to force a new call, got %d calls", calls.Load())
	}
}
