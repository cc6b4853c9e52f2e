// Package config loads websmith client configuration from YAML, an optional
// .env file and WEBSMITH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
)

// Config holds all websmith client configuration.
type Config struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	AuthToken      string               `yaml:"auth_token"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Cache          CacheConfig          `yaml:"cache"`
	Redis          RedisConfig          `yaml:"redis"`
	Dedup          DedupConfig          `yaml:"dedup"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Batch          BatchConfig          `yaml:"batch"`
	Performance    PerformanceConfig    `yaml:"performance"`
	Metrics        bool                 `yaml:"metrics"`
	Janitor        JanitorConfig        `yaml:"janitor"`
	Admin          AdminConfig          `yaml:"admin"`
	Log            LogConfig            `yaml:"log"`
}

// LimitConfig is one sliding-window limit.
type LimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// RateLimitConfig controls the global limiter and per endpoint-group limiters.
type RateLimitConfig struct {
	Enabled     bool                   `yaml:"enabled"`
	MaxRequests int                    `yaml:"max_requests"`
	Window      time.Duration          `yaml:"window"`
	Groups      map[string]LimitConfig `yaml:"groups"`
}

// CacheConfig controls the local response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// RedisConfig controls the shared cache tier.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DedupConfig controls in-flight request de-duplication.
type DedupConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// RetryConfig controls retries of idempotent requests.
type RetryConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Jitter     float64       `yaml:"jitter"`
}

// CircuitBreakerConfig controls the circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`
}

// BatchConfig controls FetchAll batching. RatePerSecond > 0 paces item starts.
type BatchConfig struct {
	Size          int           `yaml:"size"`
	Delay         time.Duration `yaml:"delay"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// PerformanceConfig controls the performance monitor and its SQLite archive.
type PerformanceConfig struct {
	MaxEntries int    `yaml:"max_entries"`
	DBPath     string `yaml:"db_path"`
}

// JanitorConfig controls the periodic cleanup of expired state.
type JanitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// AdminConfig controls the admin HTTP server.
type AdminConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	Debug       bool   `yaml:"debug"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: websmith.DefaultRateLimitMaxRequests,
			Window:      websmith.DefaultRateLimitWindow,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: websmith.DefaultCacheMaxSize,
			TTL:     websmith.DefaultCacheTTL,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Dedup: DedupConfig{
			Enabled: true,
			TTL:     websmith.DefaultDeduplicationTTL,
		},
		Retry: RetryConfig{
			Enabled:    true,
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
			SuccessThreshold: 2,
		},
		Batch: BatchConfig{
			Size:  websmith.DefaultBatchSize,
			Delay: websmith.DefaultDelayBetweenBatches,
		},
		Performance: PerformanceConfig{
			MaxEntries: websmith.DefaultPerformanceMaxEntries,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Interval: websmith.DefaultJanitorInterval,
		},
		Admin: AdminConfig{
			Listen: ":9464",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads environment variables from the given .env files (".env"
// when none are given). Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file, expands ${VAR} references and applies
// WEBSMITH_* overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from WEBSMITH_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	str("WEBSMITH_BASE_URL", &c.BaseURL)
	dur("WEBSMITH_TIMEOUT", &c.Timeout)
	str("WEBSMITH_AUTH_TOKEN", &c.AuthToken)
	flag("WEBSMITH_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	num("WEBSMITH_RATE_LIMIT_MAX_REQUESTS", &c.RateLimit.MaxRequests)
	dur("WEBSMITH_RATE_LIMIT_WINDOW", &c.RateLimit.Window)
	flag("WEBSMITH_CACHE_ENABLED", &c.Cache.Enabled)
	dur("WEBSMITH_CACHE_TTL", &c.Cache.TTL)
	flag("WEBSMITH_REDIS_ENABLED", &c.Redis.Enabled)
	str("WEBSMITH_REDIS_ADDR", &c.Redis.Addr)
	str("WEBSMITH_REDIS_PASSWORD", &c.Redis.Password)
	flag("WEBSMITH_RETRY_ENABLED", &c.Retry.Enabled)
	num("WEBSMITH_RETRY_MAX_RETRIES", &c.Retry.MaxRetries)
	flag("WEBSMITH_METRICS", &c.Metrics)
	str("WEBSMITH_PERF_DB", &c.Performance.DBPath)
	str("WEBSMITH_ADMIN_LISTEN", &c.Admin.Listen)
	if v, ok := lookup("WEBSMITH_ADMIN_ALLOWED_ORIGINS"); ok {
		c.Admin.AllowedOrigins = splitList(v)
	}
	str("WEBSMITH_LOG_LEVEL", &c.Log.Level)
	flag("WEBSMITH_DEBUG", &c.Log.Debug)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", websmith.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var problems []string

	if c.BaseURL == "" {
		problems = append(problems, "base_url is required")
	} else if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		problems = append(problems, "base_url must start with http:// or https://")
	}
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
			problems = append(problems, "rate_limit max_requests and window must be positive")
		}
		for group, l := range c.RateLimit.Groups {
			if l.MaxRequests <= 0 || l.Window <= 0 {
				problems = append(problems, fmt.Sprintf("rate_limit group %q max_requests and window must be positive", group))
			}
		}
	}
	if c.Cache.Enabled && (c.Cache.MaxSize <= 0 || c.Cache.TTL <= 0) {
		problems = append(problems, "cache max_size and ttl must be positive")
	}
	if c.Redis.Enabled {
		if !c.Cache.Enabled {
			problems = append(problems, "redis requires cache to be enabled")
		}
		if c.Redis.Addr == "" {
			problems = append(problems, "redis addr is required when redis is enabled")
		}
	}
	if c.Retry.Enabled {
		if c.Retry.MaxRetries < 0 {
			problems = append(problems, "retry max_retries must be non-negative")
		}
		if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
			problems = append(problems, "retry jitter must be between 0 and 1")
		}
	}
	if c.Batch.Size < 0 || c.Batch.Delay < 0 || c.Batch.RatePerSecond < 0 {
		problems = append(problems, "batch values must be non-negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log level %q is not valid", c.Log.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", websmith.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// NewLogger builds the zap logger described by the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// ClientOptions translates the configuration into client options. The shared
// cache and logger are supplied by the caller since they own connections.
func (c *Config) ClientOptions() []websmith.Option {
	opts := []websmith.Option{
		websmith.WithBaseURL(c.BaseURL),
		websmith.WithTimeout(c.Timeout),
		websmith.WithPerformanceMonitor(websmith.NewPerformanceMonitor(c.Performance.MaxEntries)),
	}

	if c.AuthToken != "" {
		token := c.AuthToken
		opts = append(opts, websmith.WithAuthToken(func() string { return token }))
	}
	if c.RateLimit.Enabled {
		opts = append(opts, websmith.WithRateLimiter(c.RateLimit.MaxRequests, c.RateLimit.Window))
		for group, l := range c.RateLimit.Groups {
			opts = append(opts, websmith.WithGroupRateLimiter(group, l.MaxRequests, l.Window))
		}
	}
	if c.Cache.Enabled {
		opts = append(opts, websmith.WithCache(c.Cache.MaxSize, c.Cache.TTL))
	}
	if c.Dedup.Enabled {
		opts = append(opts, websmith.WithDeduplication(c.Dedup.TTL))
	}
	if c.Retry.Enabled {
		opts = append(opts, websmith.WithRetry(websmith.RetryConfig{
			MaxRetries: c.Retry.MaxRetries,
			BaseDelay:  c.Retry.BaseDelay,
			MaxDelay:   c.Retry.MaxDelay,
			Jitter:     c.Retry.Jitter,
		}))
	}
	if c.CircuitBreaker.Enabled {
		opts = append(opts, websmith.WithCircuitBreaker(websmith.CircuitBreakerConfig{
			FailureThreshold: c.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  c.CircuitBreaker.RecoveryTimeout,
			SuccessThreshold: c.CircuitBreaker.SuccessThreshold,
		}))
	}

	batch := websmith.BatchConfig{
		BatchSize:           c.Batch.Size,
		DelayBetweenBatches: c.Batch.Delay,
	}
	if c.Batch.RatePerSecond > 0 {
		burst := c.Batch.Burst
		if burst <= 0 {
			burst = 1
		}
		batch.Limiter = rate.NewLimiter(rate.Limit(c.Batch.RatePerSecond), burst)
	}
	opts = append(opts, websmith.WithBatch(batch))

	if c.Metrics {
		opts = append(opts, websmith.WithMetrics())
	}
	if c.Log.Debug {
		opts = append(opts, websmith.WithDebug())
	}
	return opts
}
