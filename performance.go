package websmith

import (
	"sync"
	"time"
)

const (
	DefaultPerformanceMaxEntries = 1000
	DefaultStatsTimeframe        = time.Hour
)

// PerformanceEntry records one completed request.
type PerformanceEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	URL       string        `json:"url"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Status    int           `json:"status"`
}

// PerformanceStats aggregates entries over a timeframe. All fields are zero
// when no entry falls in range.
type PerformanceStats struct {
	TotalRequests       int           `json:"totalRequests"`
	SuccessfulRequests  int           `json:"successfulRequests"`
	SuccessRate         float64       `json:"successRate"`
	ErrorRate           float64       `json:"errorRate"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	MinResponseTime     time.Duration `json:"minResponseTime"`
	MaxResponseTime     time.Duration `json:"maxResponseTime"`
}

// PerformanceMonitor keeps the most recent request outcomes in a fixed-size
// ring; the oldest entry is dropped once maxEntries is reached.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	maxEntries int
	ring       []PerformanceEntry
	next       int // slot for the next write
	count      int
	sink       PerformanceSink
	onSinkErr  func(error)
	now        func() time.Time
}

// NewPerformanceMonitor creates a monitor. A non-positive maxEntries falls back to 1000.
func NewPerformanceMonitor(maxEntries int) *PerformanceMonitor {
	if maxEntries <= 0 {
		maxEntries = DefaultPerformanceMaxEntries
	}
	return &PerformanceMonitor{
		maxEntries: maxEntries,
		ring:       make([]PerformanceEntry, maxEntries),
		now:        time.Now,
	}
}

// SetSink forwards every recorded entry to sink. Sink failures go to onErr
// when set and never affect the in-memory buffer.
func (pm *PerformanceMonitor) SetSink(sink PerformanceSink, onErr func(error)) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.sink = sink
	pm.onSinkErr = onErr
}

// RecordRequest appends a completed request.
func (pm *PerformanceMonitor) RecordRequest(method, url string, duration time.Duration, success bool, status int, err error) {
	entry := PerformanceEntry{
		Method:   method,
		URL:      url,
		Duration: duration,
		Success:  success,
		Status:   status,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	pm.Record(entry)
}

// Record appends entry, stamping it with the current time when unset. A nil
// monitor records nothing.
func (pm *PerformanceMonitor) Record(entry PerformanceEntry) {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = pm.now()
	}
	pm.ring[pm.next] = entry
	pm.next = (pm.next + 1) % pm.maxEntries
	if pm.count < pm.maxEntries {
		pm.count++
	}
	sink, onErr := pm.sink, pm.onSinkErr
	pm.mu.Unlock()

	if sink != nil {
		if err := sink.Write(entry); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Entries returns the buffered entries, newest first.
func (pm *PerformanceMonitor) Entries() []PerformanceEntry {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]PerformanceEntry, 0, pm.count)
	pm.each(func(e PerformanceEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Len returns the number of buffered entries.
func (pm *PerformanceMonitor) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.count
}

// Stats aggregates entries recorded within timeframe of now. A non-positive
// timeframe means one hour.
func (pm *PerformanceMonitor) Stats(timeframe time.Duration) PerformanceStats {
	if timeframe <= 0 {
		timeframe = DefaultStatsTimeframe
	}

	pm.mu.RLock()
	defer pm.mu.RUnlock()

	cutoff := pm.now().Add(-timeframe)
	var stats PerformanceStats
	var totalDuration time.Duration

	pm.each(func(e PerformanceEntry) bool {
		if !e.Timestamp.After(cutoff) {
			return true
		}
		stats.TotalRequests++
		if e.Success {
			stats.SuccessfulRequests++
		}
		totalDuration += e.Duration
		if stats.TotalRequests == 1 || e.Duration < stats.MinResponseTime {
			stats.MinResponseTime = e.Duration
		}
		if e.Duration > stats.MaxResponseTime {
			stats.MaxResponseTime = e.Duration
		}
		return true
	})

	if stats.TotalRequests == 0 {
		return PerformanceStats{}
	}
	total := float64(stats.TotalRequests)
	stats.SuccessRate = float64(stats.SuccessfulRequests) / total
	stats.ErrorRate = 1 - stats.SuccessRate
	stats.AverageResponseTime = totalDuration / time.Duration(stats.TotalRequests)
	return stats
}

// Clear drops every buffered entry.
func (pm *PerformanceMonitor) Clear() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.ring = make([]PerformanceEntry, pm.maxEntries)
	pm.next = 0
	pm.count = 0
}

// each walks entries newest first until fn returns false. Caller holds pm.mu.
func (pm *PerformanceMonitor) each(fn func(PerformanceEntry) bool) {
	for i := 1; i <= pm.count; i++ {
		idx := (pm.next - i + pm.maxEntries) % pm.maxEntries
		if !fn(pm.ring[idx]) {
			return
		}
	}
}
