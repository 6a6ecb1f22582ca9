package bot

import (
	"testing"

	"emilia-bot/internal/config"
)

func TestLimiterAllowsBurst(t *testing.T) {
	pool := newLimiterPool(config.RateLimitConfig{PerSecond: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		if !pool.Allow(1) {
			t.Fatalf("Request %d within burst was denied", i+1)
		}
	}
	if pool.Allow(1) {
		t.Error("Request beyond burst was allowed")
	}
}

// One user exhausting their budget must not slow anyone else down.
func TestLimiterIsPerUser(t *testing.T) {
	pool := newLimiterPool(config.RateLimitConfig{PerSecond: 1, Burst: 1})

	if !pool.Allow(1) {
		t.Fatal("First request for user 1 denied")
	}
	if pool.Allow(1) {
		t.Error("Second immediate request for user 1 allowed")
	}
	if !pool.Allow(2) {
		t.Error("User 2's first request denied after user 1 was limited")
	}
}

func TestLimiterZeroConfigFallsBackToSane(t *testing.T) {
	pool := newLimiterPool(config.RateLimitConfig{})

	if !pool.Allow(1) {
		t.Error("Limiter with zero config should still allow one request")
	}
}
