package auth

import (
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionCache maps opaque session tokens to verified user records. It is
// bounded with LRU eviction and performs no I/O. An entry past its absolute
// expiry is treated as absent and evicted on read, so a stale identity is
// never returned even before the background sweep runs.
type SessionCache struct {
	lru *expirable.LRU[string, *CachedSession]
	ttl time.Duration
}

// NewSessionCache creates a session cache with the given capacity and TTL.
func NewSessionCache(size int, ttl time.Duration) *SessionCache {
	if size <= 0 {
		size = 1000
	}
	return &SessionCache{
		lru: expirable.NewLRU[string, *CachedSession](size, nil, ttl),
		ttl: ttl,
	}
}

// Set stores a user under the session token, overwriting any prior entry.
func (c *SessionCache) Set(token string, user *SessionUser) {
	now := time.Now().UnixMilli()
	c.lru.Add(token, &CachedSession{
		User:         user,
		ExpiresAt:    now + c.ttl.Milliseconds(),
		LastVerified: now,
	})
}

// Get returns the cached user for a token, or nil. Expired entries are
// evicted eagerly.
func (c *SessionCache) Get(token string) *SessionUser {
	cached, ok := c.lru.Get(token)
	if !ok {
		return nil
	}
	if time.Now().UnixMilli() > cached.ExpiresAt {
		c.lru.Remove(token)
		return nil
	}
	return cached.User
}

// Invalidate removes a token's entry. It is a no-op for absent tokens.
func (c *SessionCache) Invalidate(token string) {
	c.lru.Remove(token)
}

// Clear drops every entry.
func (c *SessionCache) Clear() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *SessionCache) Len() int {
	return c.lru.Len()
}
