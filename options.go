package websmith

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WithBaseURL sets the URL request paths are resolved against
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		// Update timeout if it was set
		if client != nil && c.timeout != 0 {
			c.httpClient.Timeout = c.timeout
		}
	}
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimiter sets the fallback rate limiter that applies to every group
// without its own limiter
func WithRateLimiter(maxRequests int, window time.Duration) Option {
	return func(c *Client) {
		if maxRequests <= 0 || window <= 0 {
			c.invalid("rateLimiter maxRequests and window must be positive")
		}
		c.ensureLimiters().SetFallback(NewRateLimiter(maxRequests, window))
	}
}

// WithGroupRateLimiter gives one endpoint group (business, website, media, ...)
// its own limiter
func WithGroupRateLimiter(group string, maxRequests int, window time.Duration) Option {
	return func(c *Client) {
		if group == "" {
			c.invalid("rate limiter group cannot be empty")
		}
		if maxRequests <= 0 || window <= 0 {
			c.invalid(fmt.Sprintf("rateLimiter %q maxRequests and window must be positive", group))
		}
		c.ensureLimiters().Register(group, NewRateLimiter(maxRequests, window))
	}
}

// WithGroupKeyFunc sets how request paths map onto endpoint groups
func WithGroupKeyFunc(fn GroupKeyFunc) Option {
	return func(c *Client) {
		if fn == nil {
			c.invalid("group key function cannot be nil")
			return
		}
		c.groupKeyFunc = fn
		if c.limiters != nil {
			c.limiters.SetKeyFunc(fn)
		}
	}
}

// WithCache enables the local response cache for GET requests
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(c *Client) {
		if maxSize <= 0 {
			c.invalid("cache maxSize must be positive when cache is enabled")
		}
		if ttl <= 0 {
			c.invalid("cacheTTL must be positive when cache is enabled")
		}
		c.cache = NewAPICache(maxSize, ttl)
	}
}

// WithSharedCache adds a second cache tier shared between processes
func WithSharedCache(shared SharedCache) Option {
	return func(c *Client) {
		c.sharedCache = shared
	}
}

// WithDeduplication enables request deduplication for GET and HEAD requests
func WithDeduplication(ttl time.Duration) Option {
	return func(c *Client) {
		c.dedup = NewRequestDeduplicator(ttl)
	}
}

// WithRetry enables retries for idempotent requests
func WithRetry(config RetryConfig) Option {
	return func(c *Client) {
		if config.MaxRetries < 0 {
			c.invalid("maxRetries must be non-negative")
		}
		if config.Jitter < 0 || config.Jitter > 1 {
			c.invalid("jitter must be between 0 and 1")
		}
		if config.BaseDelay > 0 && config.MaxDelay > 0 && config.MaxDelay < config.BaseDelay {
			c.invalid("maxDelay must be greater than or equal to baseDelay")
		}
		c.retry = NewRetryManager(config)
	}
}

// WithRetryCondition sets a custom retry condition
func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

// WithCircuitBreaker sets the circuit breaker configuration
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithPerformanceMonitor replaces the default performance monitor. A nil
// monitor turns recording off.
func WithPerformanceMonitor(monitor *PerformanceMonitor) Option {
	return func(c *Client) {
		c.monitor = monitor
	}
}

// WithBatch sets the batch configuration used by FetchAll
func WithBatch(config BatchConfig) Option {
	return func(c *Client) {
		c.batch = NewBatchRequestManager(config)
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithAuthToken sends "Authorization: Bearer <token>" with every request. The
// token is read per request so it can be rotated.
func WithAuthToken(token func() string) Option {
	return func(c *Client) {
		if token == nil {
			c.invalid("auth token source cannot be nil")
			return
		}
		c.middleware = append(c.middleware, func(req *http.Request, next RoundTripper) (*http.Response, error) {
			if t := token(); t != "" && req.Header.Get("Authorization") == "" {
				req.Header.Set("Authorization", "Bearer "+t)
			}
			return next.RoundTrip(req)
		})
	}
}

func (c *Client) ensureLimiters() *RateLimiterRegistry {
	if c.limiters == nil {
		c.limiters = NewRateLimiterRegistry(c.groupKeyFunc, nil)
	}
	return c.limiters
}

func (c *Client) invalid(problem string) {
	c.optionErrors = append(c.optionErrors, problem)
}

// ValidateConfiguration validates the client configuration and returns an
// error wrapping ErrInvalidConfig that lists every problem found
func (c *Client) ValidateConfiguration() error {
	var errors []string

	// Validate each configuration section
	errors = append(errors, c.optionErrors...)
	errors = append(errors, c.validateHTTPClientConfig()...)
	errors = append(errors, c.validateBaseURL()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)
	errors = append(errors, c.validateOptionCombinations()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errors, "; "))
	}

	return nil
}

// validateHTTPClientConfig validates HTTP client configuration
func (c *Client) validateHTTPClientConfig() []string {
	var errors []string

	if c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}
	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}

	return errors
}

func (c *Client) validateBaseURL() []string {
	if c.baseURL == "" {
		return nil
	}
	if !strings.HasPrefix(c.baseURL, "http://") && !strings.HasPrefix(c.baseURL, "https://") {
		return []string{fmt.Sprintf("baseURL %q must start with http:// or https://", c.baseURL)}
	}
	return nil
}

// validateDebugConfig validates debug configuration
func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug == nil {
		errors = append(errors, "debug config cannot be nil")
		return errors
	}
	if c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

// validateMiddlewareConfig validates middleware configuration
func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}

// validateOptionCombinations validates that option combinations make sense together
func (c *Client) validateOptionCombinations() []string {
	var errors []string

	if c.sharedCache != nil && c.cache == nil {
		errors = append(errors, "shared cache requires the local cache (WithCache)")
	}
	if c.retry != nil && c.retryCondition == nil {
		errors = append(errors, "retry condition cannot be nil when retries are enabled")
	}
	if c.groupKeyFunc == nil {
		errors = append(errors, "group key function cannot be nil")
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.retry != nil {
		cfg := c.retry.Config()
		if cfg.MaxRetries > 100 {
			errors = append(errors, "maxRetries > 100 may cause excessive resource usage")
		}
		if cfg.MaxDelay > time.Hour {
			errors = append(errors, "maxDelay > 1h may cause extremely long delays")
		}
	}

	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	if c.limiters != nil {
		limiters := c.limiters.Groups()
		if fb := c.limiters.Fallback(); fb != nil {
			limiters["default"] = fb
		}
		for group, rl := range limiters {
			maxRequests, window := rl.Limit()
			if maxRequests > 1000000 {
				errors = append(errors, fmt.Sprintf("rateLimiter %q maxRequests > 1M may cause memory issues", group))
			}
			if window < time.Millisecond {
				errors = append(errors, fmt.Sprintf("rateLimiter %q window < 1ms is too small to be useful", group))
			}
		}
	}

	if c.cache != nil && c.cache.TTL() > 24*time.Hour {
		errors = append(errors, "cacheTTL > 24h may cause stale data issues")
	}

	return errors
}
