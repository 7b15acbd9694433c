package security

import (
	"net/http"
	"strings"
	"testing"
)

func TestNewNonce(t *testing.T) {
	a := NewNonce()
	b := NewNonce()
	if a == b {
		t.Error("consecutive nonces must differ")
	}
	if strings.Contains(a, "-") {
		t.Errorf("nonce %q contains dashes", a)
	}
}

func TestApplyHeadersBattery(t *testing.T) {
	m := NewHeadersManager(false, true)
	h := http.Header{}
	m.Apply(h, "abc123")

	want := map[string]string{
		"X-Frame-Options":                   "DENY",
		"X-Content-Type-Options":            "nosniff",
		"X-XSS-Protection":                  "1; mode=block",
		"Referrer-Policy":                   "strict-origin-when-cross-origin",
		"Permissions-Policy":                "camera=(), microphone=(), geolocation=(), payment=()",
		"X-DNS-Prefetch-Control":            "off",
		"X-Download-Options":                "noopen",
		"X-Permitted-Cross-Domain-Policies": "none",
		"x-nonce":                           "abc123",
		"x-cors-status":                     "valid",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestApplyCSPNonce(t *testing.T) {
	m := NewHeadersManager(false, true)
	h := http.Header{}
	m.Apply(h, "abc123")

	csp := h.Get("Content-Security-Policy")
	if !strings.Contains(csp, "script-src 'self' 'nonce-abc123'") {
		t.Errorf("script-src missing nonce: %s", csp)
	}
	if !strings.Contains(csp, "style-src 'self' 'nonce-abc123'") {
		t.Errorf("style-src missing nonce: %s", csp)
	}
	if !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("frame-ancestors missing: %s", csp)
	}
}

func TestCSPEnvironmentDifferences(t *testing.T) {
	devHeaders := http.Header{}
	NewHeadersManager(false, true).Apply(devHeaders, "n")
	prodHeaders := http.Header{}
	NewHeadersManager(true, true).Apply(prodHeaders, "n")

	devCSP := devHeaders.Get("Content-Security-Policy")
	prodCSP := prodHeaders.Get("Content-Security-Policy")

	if !strings.Contains(devCSP, "https://vercel.live") {
		t.Error("development CSP missing live-preview source")
	}
	if strings.Contains(prodCSP, "https://vercel.live") {
		t.Error("production CSP must not include live-preview source")
	}
	if !strings.Contains(devCSP, "ws://localhost:*") {
		t.Error("development CSP missing local websocket source")
	}
	if strings.Contains(prodCSP, "ws://localhost") {
		t.Error("production CSP must not include local websocket source")
	}
	if !strings.Contains(prodCSP, "upgrade-insecure-requests") {
		t.Error("production CSP missing upgrade-insecure-requests")
	}
	if strings.Contains(devCSP, "upgrade-insecure-requests") {
		t.Error("development CSP must not upgrade insecure requests")
	}
}

func TestHSTSProductionOnly(t *testing.T) {
	devHeaders := http.Header{}
	NewHeadersManager(false, true).Apply(devHeaders, "n")
	if devHeaders.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set in development")
	}

	prodHeaders := http.Header{}
	NewHeadersManager(true, true).Apply(prodHeaders, "n")
	if got := prodHeaders.Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains; preload" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestCorsStatusFallback(t *testing.T) {
	h := http.Header{}
	NewHeadersManager(true, false).Apply(h, "n")
	if got := h.Get("x-cors-status"); got != "fallback" {
		t.Errorf("x-cors-status = %q, want fallback", got)
	}
}
