package websmith

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the resilience layers. It is safe for concurrent use, and every method is a
// no-op on a nil collector.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimitRemaining *prometheus.GaugeVec
	rateLimitedTotal   *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	deduplicationHits *prometheus.CounterVec

	batchItemsTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a collector on a fresh registry.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
}

// NewMetricsCollectorWithRegistry creates a collector registered on registry.
func NewMetricsCollectorWithRegistry(registry *prometheus.Registry) *MetricsCollector {
	factory := promauto.With(registry)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_requests_total",
				Help: "Total number of API requests completed",
			},
			[]string{"method", "status_code", "group"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "websmith_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "group"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "websmith_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method", "group"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "group", "attempt"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "websmith_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimitRemaining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "websmith_rate_limit_remaining",
				Help: "Requests left in the current rate limit window",
			},
			[]string{"group"},
		),
		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_rate_limited_total",
				Help: "Total number of requests rejected by the local rate limiter",
			},
			[]string{"group"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"tier", "group"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"group"},
		),
		cacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "websmith_cache_size",
				Help: "Current number of entries in the local cache",
			},
			[]string{"name"},
		),
		deduplicationHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_deduplication_hits_total",
				Help: "Total number of calls served by another in-flight call",
			},
			[]string{"method", "group"},
		),
		batchItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_batch_items_total",
				Help: "Total number of batch items processed by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websmith_errors_total",
				Help: "Total number of normalized API errors by kind",
			},
			[]string{"kind", "method", "group"},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "websmith_build_info",
				Help: "Build metadata of the websmith client, always 1",
			},
			[]string{"version", "commit", "go_version"},
		),
		registry: registry,
	}
	info := BuildInfo()
	mc.buildInfo.WithLabelValues(info.Version, info.GitCommit, info.GoVersion).Set(1)
	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, group string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, group).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, group).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, group string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, group).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, group string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, group).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, group string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, group, strconv.Itoa(attempt)).Inc()
}

// RecordCircuitBreakerState sets gauge to breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitRemaining sets the remaining-requests gauge.
func (mc *MetricsCollector) RecordRateLimitRemaining(group string, remaining int) {
	if mc == nil {
		return
	}
	mc.rateLimitRemaining.WithLabelValues(group).Set(float64(remaining))
}

// RecordRateLimited increments the local rejection counter.
func (mc *MetricsCollector) RecordRateLimited(group string) {
	if mc == nil {
		return
	}
	mc.rateLimitedTotal.WithLabelValues(group).Inc()
}

// RecordCacheHit increments cache hit counter for a tier ("local" or "shared").
func (mc *MetricsCollector) RecordCacheHit(tier, group string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(tier, group).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(group string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(group).Inc()
}

// RecordCacheSize sets cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordDeduplicationHit increments de-dup hit counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method, group string) {
	if mc == nil {
		return
	}
	mc.deduplicationHits.WithLabelValues(method, group).Inc()
}

// RecordBatchItem counts one processed batch item.
func (mc *MetricsCollector) RecordBatchItem(success bool) {
	if mc == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	mc.batchItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordError increments error counter by kind.
func (mc *MetricsCollector) RecordError(kind ErrorKind, method, group string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(kind), method, group).Inc()
}

// GetRegistry exposes the underlying prometheus registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
