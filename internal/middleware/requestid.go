package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func init() {
	// Batch crypto/rand reads into a pool to avoid a syscall per UUID.
	uuid.EnableRandPool()
}

// requestIDLength is the length of generated request IDs.
const requestIDLength = 16

// Header carrying the request ID on both request and response.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// NewRequestID generates a short random request identifier.
func NewRequestID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:requestIDLength]
}

// RequestID tags every request with an identifier. Incoming IDs are not
// trusted; the gateway always mints its own.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := NewRequestID()

			r.Header.Set(RequestIDHeader, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID from the request context.
func GetRequestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
