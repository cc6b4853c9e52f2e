package websmith

import (
	"sync"
	"testing"
	"time"
)

func newTestRateLimiter(maxRequests int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	rl := NewRateLimiter(maxRequests, window)
	rl.now = clock.Now
	return rl, clock
}

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, time.Second)

	maxRequests, window := rl.Limit()
	if maxRequests != 10 {
		t.Errorf("Expected maxRequests=10, got %d", maxRequests)
	}
	if window != time.Second {
		t.Errorf("Expected window=1s, got %v", window)
	}
	if rl.RemainingRequests() != 10 {
		t.Errorf("Expected 10 remaining, got %d", rl.RemainingRequests())
	}
}

func TestNewRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)

	maxRequests, window := rl.Limit()
	if maxRequests != 100 || window != time.Minute {
		t.Errorf("Expected 100/1m defaults, got %d/%v", maxRequests, window)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl, clock := newTestRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.CanMakeRequest() {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		rl.RecordRequest()
	}

	if rl.CanMakeRequest() {
		t.Error("Expected false after maxRequests recorded")
	}

	clock.Advance(time.Second)
	if !rl.CanMakeRequest() {
		t.Error("Expected true once the window has elapsed")
	}
	if rl.RemainingRequests() != 3 {
		t.Errorf("Expected full capacity after the window, got %d", rl.RemainingRequests())
	}
}

func TestRateLimiterBlockDuration(t *testing.T) {
	rl, clock := newTestRateLimiter(2, time.Second)

	rl.RecordRequest()
	clock.Advance(900 * time.Millisecond)
	rl.RecordRequest() // trips the block until +1.9s

	blockUntil := rl.ResetTime()
	if want := clock.Now().Add(time.Second); !blockUntil.Equal(want) {
		t.Fatalf("Expected blockUntil=%v, got %v", want, blockUntil)
	}

	// The first request leaves the window at +1s, but the block holds for the full window.
	for i := 0; i < 9; i++ {
		clock.Advance(100 * time.Millisecond)
		if rl.CanMakeRequest() {
			t.Fatalf("Expected block to hold at +%v", clock.Now().Sub(blockUntil.Add(-time.Second)))
		}
		if rl.RemainingRequests() != 0 {
			t.Fatal("Expected 0 remaining while blocked")
		}
	}

	clock.Advance(100 * time.Millisecond)
	if !clock.Now().Equal(blockUntil) {
		t.Fatalf("Clock should be at blockUntil")
	}
	if !rl.CanMakeRequest() {
		t.Error("Expected true exactly at blockUntil")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl, clock := newTestRateLimiter(3, time.Second)

	rl.RecordRequest()
	clock.Advance(600 * time.Millisecond)
	rl.RecordRequest()

	if got := rl.RemainingRequests(); got != 1 {
		t.Fatalf("Expected 1 remaining, got %d", got)
	}

	clock.Advance(500 * time.Millisecond)
	if got := rl.RemainingRequests(); got != 2 {
		t.Errorf("Expected oldest request to slide out, got %d remaining", got)
	}
}

func TestRateLimiterResetTime(t *testing.T) {
	rl, clock := newTestRateLimiter(5, time.Minute)

	if !rl.ResetTime().IsZero() {
		t.Errorf("Expected zero reset time with no requests, got %v", rl.ResetTime())
	}

	start := clock.Now()
	rl.RecordRequest()
	clock.Advance(10 * time.Second)
	rl.RecordRequest()

	if want := start.Add(time.Minute); !rl.ResetTime().Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, rl.ResetTime())
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl, _ := newTestRateLimiter(1, time.Minute)

	rl.RecordRequest()
	if rl.CanMakeRequest() {
		t.Fatal("Expected limiter to be blocked")
	}

	rl.Reset()
	if !rl.CanMakeRequest() {
		t.Error("Expected true after Reset")
	}
	if !rl.ResetTime().IsZero() {
		t.Error("Expected zero reset time after Reset")
	}
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if rl.CanMakeRequest() {
					rl.RecordRequest()
				}
				rl.RemainingRequests()
			}
		}()
	}
	wg.Wait()

	if got := rl.RemainingRequests(); got != 500 {
		t.Errorf("Expected 500 remaining, got %d", got)
	}
}

func BenchmarkRateLimiter(b *testing.B) {
	rl := NewRateLimiter(b.N+1, time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if rl.CanMakeRequest() {
			rl.RecordRequest()
		}
	}
}
