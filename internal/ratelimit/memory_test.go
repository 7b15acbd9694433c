package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreAdmission(t *testing.T) {
	store := NewMemoryStore(100, 1.5, 30*time.Minute)
	ctx := context.Background()

	var lastReset time.Time
	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		res, err := store.Incr(ctx, "k", time.Minute, 3)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if res.Remaining != want {
			t.Errorf("request %d remaining = %d, want %d", i+1, res.Remaining, want)
		}
		lastReset = res.ResetTime
	}

	res, err := store.Incr(ctx, "k", time.Minute, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Error("fourth request allowed, want denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	if !res.ResetTime.Equal(lastReset) {
		t.Errorf("denied reset time = %v, want %v from the last allowed response", res.ResetTime, lastReset)
	}
	if res.ResetTime.Before(time.Now()) {
		t.Error("reset time in the past")
	}
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore(100, 1.5, 30*time.Minute)
	ctx := context.Background()

	window := 50 * time.Millisecond
	for i := 0; i < 2; i++ {
		if res, _ := store.Incr(ctx, "k", window, 2); !res.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if res, _ := store.Incr(ctx, "k", window, 2); res.Allowed {
		t.Fatal("over-limit request allowed")
	}

	time.Sleep(80 * time.Millisecond)

	res, _ := store.Incr(ctx, "k", window, 2)
	if !res.Allowed {
		t.Error("request denied after window elapsed")
	}
	if res.Remaining != 1 {
		t.Errorf("remaining = %d after reset, want 1", res.Remaining)
	}
}

func TestMemoryStoreIndependentKeys(t *testing.T) {
	store := NewMemoryStore(100, 1.5, 30*time.Minute)
	ctx := context.Background()

	store.Incr(ctx, "a", time.Minute, 1)
	if res, _ := store.Incr(ctx, "a", time.Minute, 1); res.Allowed {
		t.Error("key a should be exhausted")
	}
	if res, _ := store.Incr(ctx, "b", time.Minute, 1); !res.Allowed {
		t.Error("key b should be untouched")
	}
}

func TestMemoryStoreCounterLifetime(t *testing.T) {
	store := NewMemoryStore(100, 1.5, 30*time.Minute)
	ctx := context.Background()

	before := time.Now()
	if _, err := store.Incr(ctx, "k", time.Minute, 3); err != nil {
		t.Fatal(err)
	}

	c, ok := store.lru.Get("k")
	if !ok {
		t.Fatal("counter missing after Incr")
	}
	lifetime := c.expiresAt.Sub(before)
	if lifetime < 90*time.Second || lifetime > 91*time.Second {
		t.Errorf("counter lifetime = %v, want ~90s for a 1m window at 1.5x", lifetime)
	}
}

func TestMemoryStoreExpiredCounterReset(t *testing.T) {
	store := NewMemoryStore(100, 1.5, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := store.Incr(ctx, "k", time.Hour, 2); !res.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if res, _ := store.Incr(ctx, "k", time.Hour, 2); res.Allowed {
		t.Fatal("over-limit request allowed")
	}

	// An hour-long window is capped at the 30m lifetime bound. Age the
	// counter past its lifetime and the deny state must be forgotten even
	// though the window has not elapsed.
	c, ok := store.lru.Get("k")
	if !ok {
		t.Fatal("counter missing")
	}
	if !c.expiresAt.Before(c.resetTime) {
		t.Fatal("lifetime bound did not cap the hour-long window")
	}
	c.expiresAt = time.Now().Add(-time.Second)

	res, _ := store.Incr(ctx, "k", time.Hour, 2)
	if !res.Allowed {
		t.Error("request denied after counter lifetime elapsed")
	}
	if res.Remaining != 1 {
		t.Errorf("remaining = %d after lifetime reset, want 1", res.Remaining)
	}
}

func TestCounterTTLBounds(t *testing.T) {
	store := NewMemoryStore(100, 1.5, 30*time.Minute)

	tests := []struct {
		window time.Duration
		want   time.Duration
	}{
		{time.Second, 60 * time.Second},         // clamped up to the minimum
		{time.Minute, 90 * time.Second},         // 1.5x
		{time.Hour, 30 * time.Minute},           // clamped down to the maximum
		{15 * time.Minute, 22*time.Minute + 30*time.Second}, // 1.5x within bounds
	}
	for _, tt := range tests {
		if got := store.CounterTTL(tt.window); got != tt.want {
			t.Errorf("CounterTTL(%v) = %v, want %v", tt.window, got, tt.want)
		}
	}
}
