package websmith

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBody bounds how much of a response body is read.
const maxResponseBody = 10 * 1024 * 1024

// Client composes rate limiting, caching, de-duplication, retries, circuit
// breaking, performance monitoring and metrics around an *http.Client. Every
// failure it returns is an *APIError. It is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	timeout        time.Duration
	headers        http.Header
	limiters       *RateLimiterRegistry
	groupKeyFunc   GroupKeyFunc
	cache          *APICache
	sharedCache    SharedCache
	dedup          *RequestDeduplicator
	retry          *RetryManager
	retryCondition RetryCondition
	circuitBreaker *CircuitBreaker
	monitor        *PerformanceMonitor
	batch          *BatchRequestManager
	middleware     []Middleware
	metrics        *MetricsCollector
	debug          *DebugConfig
	logger         Logger
	validationErr  error
	optionErrors   []string
}

// New constructs a Client using the provided functional options. Validation
// problems do not panic; check IsValid / ValidationError.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		timeout:        30 * time.Second,
		headers:        http.Header{},
		groupKeyFunc:   DefaultGroupKeyFunc,
		retryCondition: DefaultRetryCondition,
		monitor:        NewPerformanceMonitor(DefaultPerformanceMaxEntries),
		batch:          NewBatchRequestManager(DefaultBatchConfig()),
		middleware:     []Middleware{},
		debug:          DefaultDebugConfig(),
		logger:         NopLogger(),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationErr = err
	}

	return client
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, params Params) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Params: params})
}

// GetJSON performs a GET request and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params Params, out any) error {
	resp, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := resp.JSON(out); err != nil {
		return Normalize(&OtherFailure{Err: err})
	}
	return nil
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// call carries the per-request values shared by the stages of Do.
type call struct {
	req       *Request
	method    string
	url       string
	group     string
	key       string
	requestID string
	limiter   *RateLimiter
	limitName string
}

// Do executes r: rate limit check, cache lookup, de-duplication, transport
// call with retries, error normalization, then cache fill and recording.
// A client built with invalid options returns its validation error.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	if c.validationErr != nil {
		return nil, Normalize(&OtherFailure{Err: c.validationErr})
	}
	start := time.Now()
	cl, err := c.prepare(r)
	if err != nil {
		return nil, err
	}

	c.debugLog(c.debug.LogRequests, "Starting request", "requestID", cl.requestID, "method", cl.method, "url", cl.url, "group", cl.group)

	c.metrics.RecordRequestStart(cl.method, cl.group)
	defer c.metrics.RecordRequestEnd(cl.method, cl.group)

	if cl.limiter != nil && !cl.limiter.CanMakeRequest() {
		c.debugLog(c.debug.LogRateLimit, "Rate limit exceeded", "requestID", cl.requestID, "limiter", cl.limitName, "resetAt", cl.limiter.ResetTime())
		c.metrics.RecordRateLimited(cl.limitName)
		c.metrics.RecordError(KindRateLimited, cl.method, cl.group)
		return nil, c.decorate(newRateLimitedError(), cl, 0)
	}

	cacheable := c.cache != nil && cl.method == http.MethodGet && !r.NoCache
	if cacheable {
		if resp, ok := c.lookupCache(ctx, cl); ok {
			c.metrics.RecordRequest(cl.method, cl.group, resp.StatusCode, time.Since(start))
			return resp, nil
		}
	}

	exec := func(ctx context.Context) (any, error) {
		return c.execute(ctx, cl, cacheable)
	}

	var (
		val    any
		shared bool
	)
	if c.dedup != nil && (cl.method == http.MethodGet || cl.method == http.MethodHead) {
		val, shared, err = c.dedup.Dedupe(ctx, cl.key, exec)
	} else {
		val, err = exec(ctx)
	}

	if err != nil {
		apiErr := AsAPIError(err)
		c.metrics.RecordRequest(cl.method, cl.group, apiErr.Status, time.Since(start))
		return nil, apiErr
	}

	resp := val.(*Response)
	c.metrics.RecordRequest(cl.method, cl.group, resp.StatusCode, time.Since(start))
	if shared {
		c.metrics.RecordDeduplicationHit(cl.method, cl.group)
		c.debugLog(c.debug.LogDedup, "Deduplication hit", "requestID", cl.requestID, "key", cl.key)
		resp = resp.clone()
		resp.Shared = true
	}
	return resp, nil
}

func (c *Client) prepare(r *Request) (*call, error) {
	cl := &call{
		req:    r,
		method: r.method(),
		group:  c.groupKeyFunc(r.Path),
	}
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		cl.requestID = c.debug.RequestIDGen()
	}

	target := resolveURL(c.baseURL, r.Path)
	key, err := GenerateKey(target, r.Params, cl.method)
	if err != nil {
		return nil, c.decorate(Normalize(&OtherFailure{Err: err}), cl, 0)
	}
	query, err := encodeQuery(r.Params)
	if err != nil {
		return nil, c.decorate(Normalize(&OtherFailure{Err: err}), cl, 0)
	}
	cl.key = key
	cl.url = target
	if query != "" {
		cl.url += "?" + query
	}

	if c.limiters != nil {
		cl.limiter, cl.limitName = c.limiters.Limiter(r.Path)
	}
	return cl, nil
}

// lookupCache checks the local tier, then the shared tier. A shared hit is
// copied into the local tier.
func (c *Client) lookupCache(ctx context.Context, cl *call) (*Response, bool) {
	if v, ok := c.cache.Get(cl.key); ok {
		c.metrics.RecordCacheHit("local", cl.group)
		c.debugLog(c.debug.LogCache, "Cache hit", "requestID", cl.requestID, "key", cl.key, "tier", "local")
		resp := v.(*Response).clone()
		resp.Cached = true
		return resp, true
	}

	if c.sharedCache != nil {
		data, ok, err := c.sharedCache.Get(ctx, cl.key)
		if err != nil {
			c.logger.Warn("Shared cache read failed", "key", cl.key, "error", err)
		}
		if ok {
			var stored Response
			if err := json.Unmarshal(data, &stored); err == nil {
				c.cache.Set(cl.key, &stored)
				c.metrics.RecordCacheHit("shared", cl.group)
				c.debugLog(c.debug.LogCache, "Cache hit", "requestID", cl.requestID, "key", cl.key, "tier", "shared")
				resp := stored.clone()
				resp.Cached = true
				return resp, true
			}
			c.logger.Warn("Discarding undecodable shared cache entry", "key", cl.key)
		}
	}

	c.metrics.RecordCacheMiss(cl.group)
	c.debugLog(c.debug.LogCache, "Cache miss", "requestID", cl.requestID, "key", cl.key)
	return nil, false
}

// execute performs the network call once per logical request (retries
// included) and records its outcome.
func (c *Client) execute(ctx context.Context, cl *call, cacheable bool) (*Response, error) {
	start := time.Now()
	if cl.limiter != nil {
		cl.limiter.RecordRequest()
		c.metrics.RecordRateLimitRemaining(cl.limitName, cl.limiter.RemainingRequests())
	}

	body, err := cl.req.bodyBytes()
	if err != nil {
		return nil, c.finish(cl, start, nil, Normalize(&OtherFailure{Err: err}), 0)
	}

	attempts := 0
	var resp *Response
	attempt := func(ctx context.Context) error {
		if attempts > 0 {
			c.metrics.RecordRetry(cl.method, cl.group, attempts)
			c.debugLog(c.debug.LogRetries, "Retry attempt", "requestID", cl.requestID, "attempt", attempts, "url", cl.url)
		}
		attempts++

		r, failure := c.send(ctx, cl, body)
		if failure != nil {
			return Normalize(failure)
		}
		resp = r
		return nil
	}

	cond := cl.req.RetryCondition
	if cond == nil && isIdempotent(cl.method) {
		cond = c.retryCondition
	}
	if c.retry != nil && cond != nil {
		err = c.retry.Do(ctx, attempt, cond)
	} else {
		err = attempt(ctx)
	}

	if err != nil {
		return nil, c.finish(cl, start, nil, AsAPIError(err), attempts)
	}

	if cacheable {
		c.store(ctx, cl, resp)
	}
	return resp, c.finish(cl, start, resp, nil, attempts)
}

// send performs a single transport call. Non-2xx responses come back as
// *HTTPResponse failures.
func (c *Client) send(ctx context.Context, cl *call, body []byte) (*Response, TransportFailure) {
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		c.debugLog(c.debug.LogCircuit, "Circuit breaker open", "requestID", cl.requestID, "url", cl.url)
		return nil, &OtherFailure{Err: ErrCircuitOpen}
	}

	httpReq, err := http.NewRequestWithContext(ctx, cl.method, cl.url, newBodyReader(body))
	if err != nil {
		return nil, &OtherFailure{Err: err}
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range cl.req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if cl.requestID != "" {
		httpReq.Header.Set("X-Request-ID", cl.requestID)
	}

	httpResp, err := c.executeMiddleware(httpReq)
	if err != nil {
		c.recordCircuit(false)
		return nil, &NoResponse{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		c.recordCircuit(false)
		return nil, &NoResponse{Err: fmt.Errorf("read response body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.recordCircuit(httpResp.StatusCode < 500)
		failure := &HTTPResponse{Status: httpResp.StatusCode, Body: data}
		var decoded any
		if len(data) > 0 && json.Unmarshal(data, &decoded) == nil {
			failure.Data = decoded
		}
		return nil, failure
	}

	c.recordCircuit(true)
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}

func (c *Client) recordCircuit(success bool) {
	if c.circuitBreaker == nil {
		return
	}
	if success {
		c.circuitBreaker.RecordSuccess()
	} else {
		c.circuitBreaker.RecordFailure()
	}
	c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// store fills both cache tiers with a successful response.
func (c *Client) store(ctx context.Context, cl *call, resp *Response) {
	c.cache.Set(cl.key, resp)
	c.metrics.RecordCacheSize("local", c.cache.Len())
	c.debugLog(c.debug.LogCache, "Response cached", "requestID", cl.requestID, "key", cl.key)

	if c.sharedCache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("Encoding response for shared cache failed", "key", cl.key, "error", err)
		return
	}
	if err := c.sharedCache.Set(ctx, cl.key, data, c.cache.TTL()); err != nil {
		c.logger.Warn("Shared cache write failed", "key", cl.key, "error", err)
	}
}

// finish records the outcome of a logical request and returns the decorated
// error (nil on success).
func (c *Client) finish(cl *call, start time.Time, resp *Response, apiErr *APIError, attempts int) error {
	duration := time.Since(start)
	if apiErr == nil {
		c.monitor.RecordRequest(cl.method, cl.url, duration, true, resp.StatusCode, nil)
		c.debugLog(c.debug.LogRequests, "Request completed", "requestID", cl.requestID, "status", resp.StatusCode, "duration", duration, "attempts", attempts)
		return nil
	}

	if errors.Is(apiErr, ErrCircuitOpen) {
		apiErr = newCircuitOpenError()
	}
	c.decorate(apiErr, cl, attempts)
	c.monitor.RecordRequest(cl.method, cl.url, duration, false, apiErr.Status, apiErr)
	c.metrics.RecordError(apiErr.Kind, cl.method, cl.group)
	c.debugLog(c.debug.LogRequests, "Request failed", "requestID", cl.requestID, "kind", apiErr.Kind, "status", apiErr.Status, "error", apiErr.Message, "attempts", attempts)
	return apiErr
}

func (c *Client) decorate(apiErr *APIError, cl *call, attempts int) *APIError {
	apiErr.Method = cl.method
	apiErr.URL = cl.url
	apiErr.RequestID = cl.requestID
	apiErr.Attempts = attempts
	return apiErr
}

func (c *Client) debugLog(category bool, msg string, keysAndValues ...any) {
	if c.debug == nil || !c.debug.Enabled || !category || c.logger == nil {
		return
	}
	c.logger.Debug(msg, keysAndValues...)
}

// Invalidate drops the cached GET response for path and params from both
// tiers and from the de-duplication window.
func (c *Client) Invalidate(ctx context.Context, path string, params Params) error {
	if c.cache == nil && c.dedup == nil {
		return nil
	}
	key, err := GenerateKey(resolveURL(c.baseURL, path), params, http.MethodGet)
	if err != nil {
		return Normalize(&OtherFailure{Err: err})
	}
	if c.cache != nil {
		c.cache.Delete(key)
	}
	if c.dedup != nil {
		c.dedup.Forget(key)
	}
	if c.sharedCache != nil {
		if err := c.sharedCache.Delete(ctx, key); err != nil {
			return AsAPIError(err)
		}
	}
	return nil
}

// FetchAll runs reqs through the client in batches. Each record's Index is the
// request's position in reqs.
func (c *Client) FetchAll(ctx context.Context, reqs []*Request, onProgress func(BatchProgress)) BatchResult[*Request, *Response] {
	return ProcessBatch(ctx, c.batch, reqs, func(ctx context.Context, r *Request, _ int) (*Response, error) {
		resp, err := c.Do(ctx, r)
		c.metrics.RecordBatchItem(err == nil)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}, onProgress)
}

// NewJanitor returns a Janitor sweeping this client's cache and de-duplication
// state every interval. The caller owns Start and Stop.
func (c *Client) NewJanitor(interval time.Duration) *Janitor {
	var targets []NamedCleaner
	if c.cache != nil {
		targets = append(targets, NamedCleaner{Name: "cache", Cleaner: c.cache})
	}
	if c.dedup != nil {
		targets = append(targets, NamedCleaner{Name: "deduplicator", Cleaner: c.dedup})
	}
	return NewJanitor(interval, c.logger, targets...)
}

// Cache returns the local response cache, or nil when caching is off.
func (c *Client) Cache() *APICache { return c.cache }

// Deduplicator returns the request deduplicator, or nil when disabled.
func (c *Client) Deduplicator() *RequestDeduplicator { return c.dedup }

// PerformanceMonitor returns the performance monitor.
func (c *Client) PerformanceMonitor() *PerformanceMonitor { return c.monitor }

// RateLimiters returns the rate limiter registry, or nil when rate limiting is off.
func (c *Client) RateLimiters() *RateLimiterRegistry { return c.limiters }

// Metrics returns the metrics collector, or nil.
func (c *Client) Metrics() *MetricsCollector { return c.metrics }

// CircuitBreaker returns the circuit breaker, or nil.
func (c *Client) CircuitBreaker() *CircuitBreaker { return c.circuitBreaker }

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationErr == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationErr
}
