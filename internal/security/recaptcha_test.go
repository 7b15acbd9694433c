package security

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newVerifyServer(t *testing.T, calls *atomic.Int64, score float64, success bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("secret") == "" || r.Form.Get("response") == "" {
			t.Error("verify form missing secret or response")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": success,
			"score":   score,
			"action":  "submit",
		})
	}))
}

func newVerifier(url string) *RecaptchaVerifier {
	return NewRecaptchaVerifier("secret", 0.5, url, time.Second)
}

func TestVerifyAccepted(t *testing.T) {
	var calls atomic.Int64
	srv := newVerifyServer(t, &calls, 0.9, true)
	defer srv.Close()

	if !newVerifier(srv.URL).Verify(context.Background(), "tok", "1.2.3.4") {
		t.Error("high-score token rejected")
	}
}

func TestVerifyLowScore(t *testing.T) {
	var calls atomic.Int64
	srv := newVerifyServer(t, &calls, 0.2, true)
	defer srv.Close()

	if newVerifier(srv.URL).Verify(context.Background(), "tok", "1.2.3.4") {
		t.Error("low-score token accepted")
	}
}

func TestVerifyUnsuccessful(t *testing.T) {
	var calls atomic.Int64
	srv := newVerifyServer(t, &calls, 0.9, false)
	defer srv.Close()

	if newVerifier(srv.URL).Verify(context.Background(), "tok", "1.2.3.4") {
		t.Error("unsuccessful verification accepted")
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		if newVerifier(srv.URL).Verify(context.Background(), "tok", "1.2.3.4") {
			t.Error("accepted despite upstream failure")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		if newVerifier("http://127.0.0.1:1").Verify(context.Background(), "tok", "1.2.3.4") {
			t.Error("accepted despite unreachable verify endpoint")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		if newVerifier("http://127.0.0.1:1").Verify(context.Background(), "", "1.2.3.4") {
			t.Error("accepted empty token")
		}
	})

	t.Run("no secret configured", func(t *testing.T) {
		v := NewRecaptchaVerifier("", 0.5, "http://127.0.0.1:1", time.Second)
		if v.Verify(context.Background(), "tok", "1.2.3.4") {
			t.Error("accepted without configured secret")
		}
	})
}

func TestVerifyCachesVerdict(t *testing.T) {
	var calls atomic.Int64
	srv := newVerifyServer(t, &calls, 0.9, true)
	defer srv.Close()

	v := newVerifier(srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !v.Verify(ctx, "tok", "1.2.3.4") {
			t.Fatal("token rejected")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("verify calls = %d, want 1", calls.Load())
	}

	// A different client IP is a different cache entry.
	v.Verify(ctx, "tok", "5.6.7.8")
	if calls.Load() != 2 {
		t.Errorf("verify calls = %d, want 2", calls.Load())
	}
}
