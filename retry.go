package websmith

import (
	"context"
	"time"

	"github.com/pcak20/websmith-frontend-v2-sub001/internal/backoff"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter spreads each delay by up to this fraction (0..1). Zero keeps delays exact.
	Jitter float64
}

// DefaultRetryConfig returns 3 retries with delays of 1s, 2s, 4s capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// RetryHook observes a scheduled retry: the upcoming attempt number (1-based),
// the delay before it and the error that caused it.
type RetryHook func(attempt int, delay time.Duration, err error)

// RetryManager re-runs failing operations with capped exponential backoff.
type RetryManager struct {
	config  RetryConfig
	backoff backoff.Exponential
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry RetryHook
}

// NewRetryManager creates a retry manager. Negative MaxRetries becomes 0,
// a non-positive BaseDelay or MaxDelay takes the default, and MaxDelay is
// raised to BaseDelay if smaller.
func NewRetryManager(config RetryConfig) *RetryManager {
	defaults := DefaultRetryConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaults.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}

	return &RetryManager{
		config: config,
		backoff: backoff.Exponential{
			Base:       config.BaseDelay,
			Max:        config.MaxDelay,
			Multiplier: 2,
			Jitter:     config.Jitter,
		},
		sleep: sleepContext,
	}
}

// Config returns the effective configuration.
func (m *RetryManager) Config() RetryConfig {
	return m.config
}

// OnRetry installs a hook called before every retry sleep.
func (m *RetryManager) OnRetry(hook RetryHook) {
	m.onRetry = hook
}

// Delay returns the backoff before the retry that follows attempt (0-indexed).
func (m *RetryManager) Delay(attempt int) time.Duration {
	return m.backoff.Delay(attempt)
}

// Do runs fn until it succeeds, cond rejects the error, or MaxRetries retries
// have been spent; at most MaxRetries+1 attempts in total. The last error is
// returned unchanged. A nil cond uses DefaultRetryCondition. Cancelling ctx
// interrupts the backoff sleep and returns ctx.Err().
func (m *RetryManager) Do(ctx context.Context, fn func(context.Context) error, cond RetryCondition) error {
	if cond == nil {
		cond = DefaultRetryCondition
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= m.config.MaxRetries || !cond(err) {
			return err
		}

		delay := m.Delay(attempt)
		if m.onRetry != nil {
			m.onRetry(attempt+1, delay, err)
		}
		if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// Retry is the value-returning form of RetryManager.Do.
func Retry[T any](ctx context.Context, m *RetryManager, fn func(context.Context) (T, error), cond RetryCondition) (T, error) {
	var result T
	err := m.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, cond)
	return result, err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
