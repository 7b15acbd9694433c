package ratelimit

import (
	"context"
	"sync"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

const minCounterTTL = 60 * time.Second

type counter struct {
	count     int
	resetTime time.Time
	expiresAt time.Time
}

// MemoryStore is the in-process counter backend, used standalone or as the
// fail-over target when Redis is unreachable. The LRU bounds memory; a single
// mutex covers the whole read-check-increment sequence so concurrent requests
// cannot both observe the same count. Each counter carries a per-key lifetime
// of CounterTTL(window); counters past their window or their lifetime are
// reset on the next touch rather than waiting for cache expiry.
type MemoryStore struct {
	mu            sync.Mutex
	lru           *expirable.LRU[string, *counter]
	ttlMultiplier float64
	maxTTL        time.Duration
}

// NewMemoryStore creates a bounded in-process store. The cache TTL for a key
// stretches beyond its window by the multiplier so deny state survives the
// window edge, clamped to [60s, maxTTL].
func NewMemoryStore(size int, ttlMultiplier float64, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = 3000
	}
	if ttlMultiplier < 1 {
		ttlMultiplier = 1.5
	}
	if maxTTL <= 0 {
		maxTTL = 30 * time.Minute
	}
	return &MemoryStore{
		lru:           expirable.NewLRU[string, *counter](size, nil, maxTTL),
		ttlMultiplier: ttlMultiplier,
		maxTTL:        maxTTL,
	}
}

// CounterTTL returns the bounded lifetime assigned to a key's counter. A
// window longer than maxTTL is forgotten at the bound, trading accuracy for
// bounded retention.
func (s *MemoryStore) CounterTTL(window time.Duration) time.Duration {
	ttl := time.Duration(float64(window) * s.ttlMultiplier)
	if ttl < minCounterTTL {
		ttl = minCounterTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	return ttl
}

// Incr admits or rejects a request under the key's fixed window.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration, limit int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.lru.Get(key)
	if !ok || now.After(c.resetTime) || now.After(c.expiresAt) {
		c = &counter{
			resetTime: now.Add(window),
			expiresAt: now.Add(s.CounterTTL(window)),
		}
		s.lru.Add(key, c)
	}

	if c.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetTime: c.resetTime}, nil
	}

	c.count++
	return Result{
		Allowed:   true,
		Remaining: limit - c.count,
		ResetTime: c.resetTime,
	}, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
