package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// Store is the counter backend for fixed-window admission. Implementations
// must make the read-check-increment sequence atomic within their scope.
type Store interface {
	// Incr admits or rejects one request under the key's window.
	Incr(ctx context.Context, key string, window time.Duration, limit int) (Result, error)
}
