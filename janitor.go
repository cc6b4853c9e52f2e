package websmith

import (
	"context"
	"sync"
	"time"
)

// DefaultJanitorInterval is how often a Janitor sweeps when no interval is given.
const DefaultJanitorInterval = 5 * time.Minute

// NamedCleaner labels a Cleaner for logging.
type NamedCleaner struct {
	Name    string
	Cleaner Cleaner
}

// Janitor periodically removes expired cache entries and stale deduplication
// state. Nothing runs until Start is called.
type Janitor struct {
	interval time.Duration
	targets  []NamedCleaner
	logger   Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a janitor sweeping targets every interval (5 minutes when
// non-positive). Targets with a nil Cleaner are skipped.
func NewJanitor(interval time.Duration, logger Logger, targets ...NamedCleaner) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = NopLogger()
	}
	kept := make([]NamedCleaner, 0, len(targets))
	for _, t := range targets {
		if t.Cleaner != nil {
			kept = append(kept, t)
		}
	}
	return &Janitor{
		interval: interval,
		targets:  kept,
		logger:   logger,
	}
}

// Start begins sweeping in a background goroutine until ctx ends or Stop is
// called. Starting a running janitor is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.loop(ctx, j.done)
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// Stop ends the background loop and waits for it to exit. Stopping a janitor
// that is not running is a no-op.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the background loop is active.
func (j *Janitor) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel != nil
}

// RunOnce sweeps every target immediately and returns the number of entries removed.
func (j *Janitor) RunOnce() int {
	total := 0
	for _, t := range j.targets {
		n := t.Cleaner.Cleanup()
		if n > 0 {
			j.logger.Debug("Janitor removed stale entries", "target", t.Name, "removed", n)
		}
		total += n
	}
	return total
}
