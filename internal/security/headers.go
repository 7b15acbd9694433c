package security

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Trusted CSP source lists. Development allows a wider script whitelist for
// live-preview tooling; production keeps it tight.
var (
	devScriptSources = []string{
		"https://vercel.live",
		"https://www.google.com",
		"https://www.gstatic.com",
		"https://js.stripe.com",
		"https://cdn.jsdelivr.net",
	}
	prodScriptSources = []string{
		"https://www.google.com",
		"https://www.gstatic.com",
		"https://js.stripe.com",
	}
	imageSources = []string{
		"https://*.vercel.app",
		"https://feliona.ai",
		"https://feliona.app",
		"https://utfs.io",
		"https://res.cloudinary.com",
		"https://s3.amazonaws.com",
		"https://images.unsplash.com",
		"https://cdn.amazonaws.com",
	}
	connectSources = []string{
		"https://api.openai.com",
		"https://api.anthropic.com",
		"https://*.vercel.app",
		"https://feliona.ai",
		"https://feliona.app",
		"https://utfs.io",
	}
)

// NewNonce returns a fresh CSP nonce for one response.
func NewNonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// HeadersManager stamps the security-header battery onto outgoing responses.
type HeadersManager struct {
	production bool
	corsValid  bool
}

// NewHeadersManager creates a manager. corsValid reflects the startup CORS
// validation outcome and is surfaced in the x-cors-status header.
func NewHeadersManager(production, corsValid bool) *HeadersManager {
	return &HeadersManager{production: production, corsValid: corsValid}
}

// buildCSP assembles the Content-Security-Policy value around a per-response
// nonce.
func (m *HeadersManager) buildCSP(nonce string) string {
	scriptSources := devScriptSources
	if m.production {
		scriptSources = prodScriptSources
	}

	wsDev := ""
	if !m.production {
		wsDev = "ws://localhost:* "
	}

	directives := []string{
		"default-src 'self'",
		"script-src 'self' 'nonce-" + nonce + "' " + strings.Join(scriptSources, " "),
		"style-src 'self' 'nonce-" + nonce + "' 'unsafe-inline' https://fonts.googleapis.com",
		"font-src 'self' https://fonts.gstatic.com https://cdn.jsdelivr.net",
		"img-src 'self' data: blob: " + strings.Join(imageSources, " "),
		"media-src 'self' https: data: blob:",
		"connect-src 'self' https: wss: data: " + wsDev + strings.Join(connectSources, " "),
		"worker-src 'self' blob:",
		"frame-src 'self' https://js.stripe.com https://www.google.com",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}
	if m.production {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// Apply sets the full hardening battery on the response headers.
func (m *HeadersManager) Apply(h http.Header, nonce string) {
	h.Set("Content-Security-Policy", m.buildCSP(nonce))
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
	h.Set("X-DNS-Prefetch-Control", "off")
	h.Set("X-Download-Options", "noopen")
	h.Set("X-Permitted-Cross-Domain-Policies", "none")

	if m.production {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}

	h.Set("x-nonce", nonce)
	if m.corsValid {
		h.Set("x-cors-status", "valid")
	} else {
		h.Set("x-cors-status", "fallback")
	}
}
