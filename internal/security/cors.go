package security

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/feliona/edge-gateway/internal/logging"
	"go.uber.org/zap"
)

// CORS response parameters shared by preflight and normal responses.
const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-CSRF-Token"
	corsMaxAge       = "86400" // 24 hours
)

// Fallback origin lists used when configuration yields no valid origins.
var (
	devFallbackOrigins  = []string{"http://localhost:3000", "https://feliona.ai"}
	prodFallbackOrigins = []string{"https://feliona.ai", "https://feliona.app"}
	emergencyOrigins    = []string{"https://feliona.ai"}
)

// CorsValidationResult is computed once at startup and immutable afterwards.
type CorsValidationResult struct {
	IsValid      bool
	ValidOrigins []string
	Errors       []string
	FallbackUsed bool
}

// ValidateOrigins parses and validates the configured origin allow-list.
// Malformed origins are dropped with a recorded error; in production,
// non-HTTPS origins are rejected too. An empty result degrades to the safe
// fallback list instead of failing startup.
func ValidateOrigins(configured []string, production bool) CorsValidationResult {
	result := CorsValidationResult{IsValid: true}

	origins := configured
	if !production {
		origins = append([]string{"http://localhost:3000"}, configured...)
	}

	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("invalid CORS origin URL: %s", origin))
			result.IsValid = false
			continue
		}
		if production && u.Scheme != "https" {
			result.Errors = append(result.Errors, fmt.Sprintf("insecure origin in production: %s", origin))
			result.IsValid = false
			continue
		}
		result.ValidOrigins = append(result.ValidOrigins, origin)
	}

	if len(result.ValidOrigins) == 0 {
		logging.Error("no valid CORS origins found, using safe fallback")
		if production {
			result.ValidOrigins = append([]string(nil), prodFallbackOrigins...)
		} else {
			result.ValidOrigins = append([]string(nil), devFallbackOrigins...)
		}
		result.FallbackUsed = true
		result.IsValid = false
	}

	if result.IsValid {
		logging.Info("CORS origins validated",
			zap.Strings("origins", result.ValidOrigins),
		)
	} else {
		logging.Warn("CORS validation issues detected",
			zap.Strings("errors", result.Errors),
			zap.Bool("fallbackUsed", result.FallbackUsed),
			zap.Strings("validOrigins", result.ValidOrigins),
		)
	}

	return result
}

// CorsPolicy answers per-request origin checks against the startup-validated
// allow-list.
type CorsPolicy struct {
	result CorsValidationResult
}

// NewCorsPolicy validates the configured origins and builds the process-wide
// policy. It never fails: a broken configuration degrades to the emergency
// fallback.
func NewCorsPolicy(configured []string, production bool) *CorsPolicy {
	result := ValidateOrigins(configured, production)
	if len(result.ValidOrigins) == 0 {
		// Unreachable unless the fallback lists are emptied; keep the
		// gateway serving regardless.
		result.ValidOrigins = append([]string(nil), emergencyOrigins...)
		result.FallbackUsed = true
		result.IsValid = false
	}
	return &CorsPolicy{result: result}
}

// Result returns the startup validation outcome.
func (p *CorsPolicy) Result() CorsValidationResult {
	return p.result
}

// IsAllowedOrigin reports whether the origin is on the validated list.
func (p *CorsPolicy) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range p.result.ValidOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// ApplyHeaders adds CORS headers to a normal response when the origin is
// allowed. Rejected origins are logged and left without CORS headers.
func (p *CorsPolicy) ApplyHeaders(h http.Header, origin string) {
	if origin == "" {
		return
	}
	if !p.IsAllowedOrigin(origin) {
		logging.Warn("CORS rejected", zap.String("origin", origin))
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	logging.Debug("CORS allowed", zap.String("origin", origin))
}

// HandlePreflight answers an OPTIONS request: full CORS headers with 24h
// caching when the origin is allowed, a bare 403 otherwise.
func (p *CorsPolicy) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !p.IsAllowedOrigin(origin) {
		logging.Warn("CORS preflight rejected",
			zap.String("origin", origin),
			zap.String("path", r.URL.Path),
		)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h := w.Header()
	p.ApplyHeaders(h, origin)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	h.Set("x-cors-validation", "passed")
	logging.Debug("CORS preflight handled",
		zap.String("origin", origin),
		zap.String("path", r.URL.Path),
	)
	w.WriteHeader(http.StatusOK)
}
