package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// GatewayError is an error the gateway returns to clients as JSON.
// The wire shape is {error, message?, retryAfter?}.
type GatewayError struct {
	Status     int    `json:"-"`
	Reason     string `json:"error"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Reason + ": " + e.Message
	}
	return e.Reason
}

// WriteJSON writes the error as JSON to the response. Base error
// singletons use pre-serialized JSON to avoid allocations.
func (e *GatewayError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	w.WriteHeader(e.Status)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Common errors
var (
	ErrInvalidCSRF = &GatewayError{
		Status: http.StatusForbidden,
		Reason: "Invalid CSRF token",
	}

	ErrAccessDenied = &GatewayError{
		Status: http.StatusForbidden,
		Reason: "Access Denied",
	}

	ErrTooManyRequests = &GatewayError{
		Status:  http.StatusTooManyRequests,
		Reason:  "Too Many Requests",
		Message: "Rate limit exceeded. Please try again later.",
	}

	ErrInternalServer = &GatewayError{
		Status: http.StatusInternalServerError,
		Reason: "Internal Server Error",
	}
)

// preSerialized holds JSON-encoded bytes for base error singletons.
var preSerialized map[*GatewayError][]byte

func init() {
	bases := []*GatewayError{
		ErrInvalidCSRF, ErrAccessDenied,
		ErrTooManyRequests, ErrInternalServer,
	}
	preSerialized = make(map[*GatewayError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// WithMessage returns a copy carrying a human-readable message.
func (e *GatewayError) WithMessage(message string) *GatewayError {
	return &GatewayError{
		Status:     e.Status,
		Reason:     e.Reason,
		Message:    message,
		RetryAfter: e.RetryAfter,
	}
}

// WithRetryAfter returns a copy carrying a retry hint in seconds.
func (e *GatewayError) WithRetryAfter(seconds int) *GatewayError {
	return &GatewayError{
		Status:     e.Status,
		Reason:     e.Reason,
		Message:    e.Message,
		RetryAfter: seconds,
	}
}
