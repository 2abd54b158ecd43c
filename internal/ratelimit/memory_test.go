package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	for i := 0; i < 3; i++ {
		result, errAllow := limiter.Allow(context.Background(), "1.2.3.4", 3, window, now.Add(time.Duration(i)*time.Second))
		if errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	result, errAllow := limiter.Allow(context.Background(), "1.2.3.4", 3, window, now.Add(3*time.Second))
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatalf("4th request within window should be rejected")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", result.Remaining)
	}

	// After the window elapses a new request resets the count to 1.
	later := now.Add(window + time.Second)
	result, errAllow = limiter.Allow(context.Background(), "1.2.3.4", 3, window, later)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("request after window expiry should be allowed")
	}
	if result.Remaining != 2 {
		t.Fatalf("expected count reset to 1 (2 remaining), got %d remaining", result.Remaining)
	}
}

func TestMemoryLimiterRejectionDoesNotIncrement(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		limiter.Allow(context.Background(), "k", 2, time.Minute, now)
	}
	entry := limiter.counters["k"]
	if entry == nil {
		t.Fatalf("missing counter entry")
	}
	if entry.count != 2 {
		t.Fatalf("rejections must not increment the counter: got %d", entry.count)
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	limiter.Allow(context.Background(), "a", 1, time.Minute, now)
	result, _ := limiter.Allow(context.Background(), "a", 1, time.Minute, now)
	if result.Allowed {
		t.Fatalf("key a should be exhausted")
	}
	result, _ = limiter.Allow(context.Background(), "b", 1, time.Minute, now)
	if !result.Allowed {
		t.Fatalf("key b should be unaffected by key a")
	}
}

func TestMemoryLimiterSweep(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	limiter.Allow(context.Background(), "a", 5, time.Minute, now)
	limiter.Allow(context.Background(), "b", 5, time.Minute, now)
	if len(limiter.counters) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(limiter.counters))
	}

	limiter.Sweep(now.Add(2 * time.Minute))
	if len(limiter.counters) != 0 {
		t.Fatalf("expected expired counters to be swept, got %d", len(limiter.counters))
	}
}

func TestSourceKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if key := SourceKey(req); key != UnknownSourceKey {
		t.Fatalf("expected unknown sentinel, got %q", key)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if key := SourceKey(req); key != "203.0.113.7" {
		t.Fatalf("expected first forwarded entry, got %q", key)
	}

	req.Header.Set("X-Forwarded-For", "  ,")
	if key := SourceKey(req); key != UnknownSourceKey {
		t.Fatalf("expected unknown sentinel for blank entry, got %q", key)
	}
}
