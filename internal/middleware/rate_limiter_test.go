package middleware

import (
	"testing"
	"time"
)

func TestIPRateLimiterEnforcesBurst(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 2, time.Hour)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("expected first request to pass")
	}
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("expected burst capacity to absorb the second request")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("expected third request to be rejected")
	}

	if !limiter.Allow("10.0.0.2") {
		t.Fatal("expected a different key to have its own budget")
	}
}

func TestIPRateLimiterExpiresIdleKeys(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute).(*ipRateLimiter)

	now := time.Now()
	limiter.clock = func() time.Time { return now }

	limiter.Allow("10.0.0.1")
	if len(limiter.entries) != 1 {
		t.Fatalf("expected one tracked key, got %d", len(limiter.entries))
	}

	limiter.clock = func() time.Time { return now.Add(2 * time.Minute) }
	limiter.Allow("10.0.0.2")

	if _, ok := limiter.entries["10.0.0.1"]; ok {
		t.Fatal("expected idle key to be evicted")
	}
}

func TestIPRateLimiterTreatsEmptyKeyAsUnknown(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)

	if !limiter.Allow("") {
		t.Fatal("expected first unknown request to pass")
	}
	if limiter.Allow("") {
		t.Fatal("expected unknown requests to share one budget")
	}
}
