package gateway

import (
	"net/http"
	"strings"

	"github.com/feliona/edge-gateway/internal/config"
)

// LocaleCookie is shared with the frontend, which reads and rewrites it
// client-side. It is deliberately not httpOnly.
const (
	LocaleCookie = "NEXT_LOCALE"
	LocaleHeader = "x-locale"

	localeCookieMaxAge = 365 * 24 * 60 * 60
)

// resolveLocale picks the request locale: cookie first, then a substring
// match against Accept-Language, then the configured default.
func resolveLocale(r *http.Request, cfg *config.Config) string {
	if cookie, err := r.Cookie(LocaleCookie); err == nil && cfg.IsSupportedLocale(cookie.Value) {
		return cookie.Value
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		accept = strings.ToLower(accept)
		for _, locale := range cfg.SupportedLocales {
			if strings.Contains(accept, strings.ToLower(locale)) {
				return locale
			}
		}
	}

	return cfg.DefaultLocale
}

// setLocaleCookie persists the resolved locale for a year when the client
// has no locale cookie yet.
func setLocaleCookie(w http.ResponseWriter, r *http.Request, locale string, secure bool) {
	if cookie, err := r.Cookie(LocaleCookie); err == nil && cookie.Value != "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LocaleCookie,
		Value:    locale,
		Path:     "/",
		MaxAge:   localeCookieMaxAge,
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}
