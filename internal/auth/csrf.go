package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Double-submit CSRF: the token is set as an httpOnly cookie and must be
// echoed back in the header on mutating requests.
const (
	CSRFCookie = "csrf-token"
	CSRFHeader = "x-csrf-token"
)

// GenerateCSRFToken returns a random hex token of the given length.
func GenerateCSRFToken(length int) string {
	if length <= 0 {
		length = 32
	}
	var b strings.Builder
	for b.Len() < length {
		b.WriteString(strings.ReplaceAll(uuid.New().String(), "-", ""))
	}
	return b.String()[:length]
}

// ValidateCSRFToken compares the client-supplied header token against the
// cookie value. The comparison is constant-time.
func ValidateCSRFToken(r *http.Request, headerToken string) bool {
	cookie, err := r.Cookie(CSRFCookie)
	if err != nil || cookie.Value == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(headerToken)) == 1
}

// SetCSRFCookie issues a fresh token on the response and returns it.
func SetCSRFCookie(w http.ResponseWriter, length int, secure bool) string {
	token := GenerateCSRFToken(length)
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}
