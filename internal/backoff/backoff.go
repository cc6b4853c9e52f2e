// Package backoff computes retry delays.
package backoff

import (
	"math/rand"
	"time"
)

// maxAttempt caps the exponent so the multiplication cannot overflow.
const maxAttempt = 30

// Exponential yields min(Base * Multiplier^attempt, Max), optionally spread by
// up to Jitter (0..1) of the delay. The result never exceeds Max.
type Exponential struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Delay returns the wait before retry number attempt+1 (attempt is 0-indexed).
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxAttempt {
		attempt = maxAttempt
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	delay := time.Duration(float64(e.Base) * Pow(multiplier, attempt))
	if delay < 0 || delay > e.Max {
		delay = e.Max
	}

	jitter := clampJitter(e.Jitter)
	if jitter > 0 {
		delay += time.Duration(float64(delay) * jitter * rand.Float64())
		if delay > e.Max {
			delay = e.Max
		}
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent for a non-negative integer exponent.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
