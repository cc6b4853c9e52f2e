package websmith

import (
	"sync"
	"testing"
	"time"
)

const (
	defaultKey  = "default"
	fallbackMsg = "Expected fallback limiter, got %v"
	keyMsg      = "Expected key '%s', got %s"
)

func TestRateLimiterRegistryLimiter(t *testing.T) {
	fallback := NewRateLimiter(10, time.Second)
	media := NewRateLimiter(2, time.Second)

	registry := NewRateLimiterRegistry(nil, fallback)

	limiter, key := registry.Limiter("/media/42")
	if limiter != fallback {
		t.Errorf(fallbackMsg, limiter)
	}
	if key != defaultKey {
		t.Errorf(keyMsg, defaultKey, key)
	}

	registry.Register("media", media)

	limiter, key = registry.Limiter("/media/42/variants")
	if limiter != media {
		t.Errorf("Expected media limiter, got %v", limiter)
	}
	if key != "media" {
		t.Errorf(keyMsg, "media", key)
	}

	limiter, key = registry.Limiter("/business/7")
	if limiter != fallback || key != defaultKey {
		t.Errorf("Expected unregistered group to use fallback, got %v (%s)", limiter, key)
	}
}

func TestRateLimiterRegistryNoFallback(t *testing.T) {
	registry := NewRateLimiterRegistry(nil, nil)

	if limiter, _ := registry.Limiter("/website/1"); limiter != nil {
		t.Errorf("Expected nil limiter, got %v", limiter)
	}

	fallback := NewRateLimiter(1, time.Second)
	registry.SetFallback(fallback)
	if registry.Fallback() != fallback {
		t.Error("Expected SetFallback to replace the fallback limiter")
	}
}

func TestRateLimiterRegistryGroupsAreIndependent(t *testing.T) {
	registry := NewRateLimiterRegistry(nil, nil)
	registry.Register("media", NewRateLimiter(1, time.Minute))
	registry.Register("analytics", NewRateLimiter(1, time.Minute))

	media, _ := registry.Limiter("/media/upload")
	media.RecordRequest()

	analytics, _ := registry.Limiter("/analytics/events")
	if !analytics.CanMakeRequest() {
		t.Error("Expected a tripped media limiter to leave analytics untouched")
	}
	if media.CanMakeRequest() {
		t.Error("Expected media limiter to be blocked")
	}
}

func TestRateLimiterRegistryCustomKeyFunc(t *testing.T) {
	auth := NewRateLimiter(5, time.Minute)
	registry := NewRateLimiterRegistry(func(path string) string {
		if path == "/auth/login" {
			return "auth"
		}
		return "other"
	}, nil)
	registry.Register("auth", auth)

	if limiter, key := registry.Limiter("/auth/login"); limiter != auth || key != "auth" {
		t.Errorf("Expected auth limiter, got %v (%s)", limiter, key)
	}

	registry.SetKeyFunc(nil)
	if _, key := registry.Limiter("/auth/login"); key != "auth" {
		t.Errorf("Expected default key func to map /auth/login to auth, got %s", key)
	}
}

func TestDefaultGroupKeyFunc(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/business/1", "business"},
		{"business/1", "business"},
		{"/media", "media"},
		{"/website/2/pages?draft=true", "website"},
		{"https://api.example.com/templates/9", "templates"},
		{"https://api.example.com", "root"},
		{"/", "root"},
		{"", "root"},
	}

	for _, tt := range tests {
		if got := DefaultGroupKeyFunc(tt.path); got != tt.expected {
			t.Errorf("DefaultGroupKeyFunc(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestRateLimiterRegistryConcurrentAccess(t *testing.T) {
	registry := NewRateLimiterRegistry(nil, NewRateLimiter(1000, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			registry.Register("group", NewRateLimiter(10, time.Second))
		}(i)
		go func() {
			defer wg.Done()
			registry.Limiter("/group/1")
			registry.Groups()
		}()
	}
	wg.Wait()

	if len(registry.Groups()) != 1 {
		t.Errorf("Expected 1 registered group, got %d", len(registry.Groups()))
	}
}
