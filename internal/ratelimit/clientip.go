package ratelimit

import (
	"net/http"
	"strings"
)

// ClientIP extracts the caller's IP from proxy headers in trust order:
// cf-connecting-ip, then the first x-forwarded-for hop, then x-real-ip.
// When none is present it returns "unknown" rather than the socket address,
// since the gateway always sits behind a proxy.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("cf-connecting-ip")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("x-forwarded-for"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("x-real-ip")); ip != "" {
		return ip
	}
	return "unknown"
}
