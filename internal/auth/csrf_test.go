package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateCSRFTokenLength(t *testing.T) {
	for _, n := range []int{16, 32, 64} {
		if got := len(GenerateCSRFToken(n)); got != n {
			t.Errorf("len(GenerateCSRFToken(%d)) = %d", n, got)
		}
	}
	if got := len(GenerateCSRFToken(0)); got != 32 {
		t.Errorf("zero length must default to 32, got %d", got)
	}
}

func TestGenerateCSRFTokenUnique(t *testing.T) {
	a := GenerateCSRFToken(32)
	b := GenerateCSRFToken(32)
	if a == b {
		t.Error("consecutive tokens must differ")
	}
}

func TestValidateCSRFToken(t *testing.T) {
	newRequest := func(cookie string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/thing", nil)
		if cookie != "" {
			r.AddCookie(&http.Cookie{Name: CSRFCookie, Value: cookie})
		}
		return r
	}

	tests := []struct {
		name   string
		cookie string
		header string
		want   bool
	}{
		{"match", "tok123", "tok123", true},
		{"mismatch", "tok123", "tok124", false},
		{"no cookie", "", "tok123", false},
		{"no header", "tok123", "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCSRFToken(newRequest(tt.cookie), tt.header); got != tt.want {
				t.Errorf("ValidateCSRFToken = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetCSRFCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	token := SetCSRFCookie(rec, 32, true)

	res := rec.Result()
	cookies := res.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CSRFCookie || c.Value != token {
		t.Errorf("cookie = %s=%s, want %s=%s", c.Name, c.Value, CSRFCookie, token)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
		t.Errorf("cookie attributes wrong: %+v", c)
	}
}
