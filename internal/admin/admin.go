// Package admin serves a small operational HTTP surface for a websmith client:
// health, a stats snapshot and Prometheus metrics.
package admin

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
)

// HealthCheck reports whether a dependency (for example the shared cache) is reachable.
type HealthCheck func(ctx context.Context) error

// Options configures the admin router.
type Options struct {
	// AllowedOrigins enables CORS for browser dashboards. Empty disables CORS.
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
	Logger         websmith.Logger
}

// LimiterSnapshot is the state of one rate limiter.
type LimiterSnapshot struct {
	Limit     int       `json:"limit"`
	Window    string    `json:"window"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Stats is the /stats response body.
type Stats struct {
	Performance    websmith.PerformanceStats  `json:"performance"`
	Cache          *websmith.CacheStats       `json:"cache,omitempty"`
	RateLimits     map[string]LimiterSnapshot `json:"rateLimits,omitempty"`
	PendingDedup   int                        `json:"pendingDeduplication"`
	CircuitBreaker string                     `json:"circuitBreaker,omitempty"`
}

// NewRouter builds the gin engine for client.
func NewRouter(client *websmith.Client, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = websmith.NopLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowedOrigins,
			AllowMethods: []string{"GET", "OPTIONS"},
			AllowHeaders: []string{"accept", "authorization", "content-type", "origin"},
			MaxAge:       12 * time.Hour,
		}))
	}

	h := &handler{client: client, opts: opts}
	router.GET("/health", h.health)
	router.GET("/stats", h.stats)
	router.GET("/metrics", h.metrics)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "path not found"})
		c.Abort()
	})

	return router
}

type handler struct {
	client *websmith.Client
	opts   Options
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	status := "healthy"
	statusCode := http.StatusOK

	names := make([]string, 0, len(h.opts.HealthChecks))
	for name := range h.opts.HealthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.opts.HealthChecks[name](ctx); err != nil {
			h.opts.Logger.Warn("Health check failed", "check", name, "error", err)
			checks[name] = false
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		checks[name] = true
	}

	if cb := h.client.CircuitBreaker(); cb != nil && cb.State() == websmith.StateOpen {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":  status,
		"checks":  checks,
		"valid":   h.client.IsValid(),
		"version": websmith.BuildInfo(),
	})
}

func (h *handler) stats(c *gin.Context) {
	timeframe := websmith.DefaultStatsTimeframe
	if raw := c.Query("timeframe"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeframe must be a positive duration such as 15m"})
			return
		}
		timeframe = d
	}

	c.JSON(http.StatusOK, Snapshot(h.client, timeframe))
}

func (h *handler) metrics(c *gin.Context) {
	mc := h.client.Metrics()
	if mc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics are not enabled"})
		return
	}
	promhttp.HandlerFor(mc.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

// Snapshot collects the current state of client.
func Snapshot(client *websmith.Client, timeframe time.Duration) Stats {
	var s Stats
	if pm := client.PerformanceMonitor(); pm != nil {
		s.Performance = pm.Stats(timeframe)
	}
	if cache := client.Cache(); cache != nil {
		cs := cache.Stats()
		s.Cache = &cs
	}
	if d := client.Deduplicator(); d != nil {
		s.PendingDedup = d.Pending()
	}
	if cb := client.CircuitBreaker(); cb != nil {
		s.CircuitBreaker = cb.State().String()
	}
	if reg := client.RateLimiters(); reg != nil {
		limiters := reg.Groups()
		if fb := reg.Fallback(); fb != nil {
			limiters["default"] = fb
		}
		s.RateLimits = make(map[string]LimiterSnapshot, len(limiters))
		for group, rl := range limiters {
			limit, window := rl.Limit()
			s.RateLimits[group] = LimiterSnapshot{
				Limit:     limit,
				Window:    window.String(),
				Remaining: rl.RemainingRequests(),
				ResetAt:   rl.ResetTime(),
			}
		}
	}
	return s
}

// Server runs the admin router until its context ends.
type Server struct {
	srv    *http.Server
	logger websmith.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, router http.Handler, logger websmith.Logger) *Server {
	if logger == nil {
		logger = websmith.NopLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
