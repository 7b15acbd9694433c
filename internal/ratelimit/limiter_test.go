package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feliona/edge-gateway/internal/auth"
	"github.com/feliona/edge-gateway/internal/config"
)

type captchaStub struct {
	verdict bool
	calls   int
}

func (c *captchaStub) Verify(_ context.Context, token, ip string) bool {
	c.calls++
	return c.verdict
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration, int) (Result, error) {
	return Result{}, errors.New("store down")
}

func newTestLimiter(captcha CaptchaVerifier) *Limiter {
	fallback := NewMemoryStore(100, 1.5, 30*time.Minute)
	return NewLimiter(nil, fallback, captcha, false)
}

func apiRequest(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/chat/messages", nil)
	r.Header.Set("x-real-ip", ip)
	return r
}

func TestLimiterAdmission(t *testing.T) {
	limiter := newTestLimiter(nil)
	cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 2}

	for i := 0; i < 2; i++ {
		if res := limiter.Check(apiRequest("1.2.3.4"), cfg, nil); !res.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if res := limiter.Check(apiRequest("1.2.3.4"), cfg, nil); res.Allowed {
		t.Error("over-limit request allowed")
	}

	// Another client IP has its own window.
	if res := limiter.Check(apiRequest("5.6.7.8"), cfg, nil); !res.Allowed {
		t.Error("distinct client denied")
	}
}

func TestLimiterUserIdentity(t *testing.T) {
	limiter := newTestLimiter(nil)
	cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 1}
	user := &auth.SessionUser{ID: "u1", Role: "user"}

	// Same user from two IPs shares one window.
	if res := limiter.Check(apiRequest("1.2.3.4"), cfg, user); !res.Allowed {
		t.Fatal("first request denied")
	}
	if res := limiter.Check(apiRequest("5.6.7.8"), cfg, user); res.Allowed {
		t.Error("user window not shared across IPs")
	}
}

func TestLimiterRoleBypass(t *testing.T) {
	limiter := newTestLimiter(nil)
	cfg := &config.RateLimitConfig{
		Window:       time.Minute,
		MaxRequests:  1,
		SkipForRoles: []string{"premium", "enterprise"},
	}
	user := &auth.SessionUser{ID: "u1", Role: "premium"}

	for i := 0; i < 5; i++ {
		res := limiter.Check(apiRequest("1.2.3.4"), cfg, user)
		if !res.Allowed {
			t.Fatalf("request %d denied for bypassed role", i+1)
		}
		if res.Remaining != cfg.MaxRequests {
			t.Errorf("remaining = %d, want full limit for bypassed role", res.Remaining)
		}
	}
}

func TestLimiterDevBypass(t *testing.T) {
	fallback := NewMemoryStore(100, 1.5, 30*time.Minute)
	limiter := NewLimiter(nil, fallback, nil, true)
	cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 1}

	for i := 0; i < 5; i++ {
		if res := limiter.Check(apiRequest("1.2.3.4"), cfg, nil); !res.Allowed {
			t.Fatalf("request %d denied in development", i+1)
		}
	}
}

func TestLimiterRecaptchaGate(t *testing.T) {
	t.Run("missing token denied without consuming quota", func(t *testing.T) {
		captcha := &captchaStub{verdict: true}
		limiter := newTestLimiter(captcha)
		cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 1, RequireRecaptcha: true}

		res := limiter.Check(apiRequest("1.2.3.4"), cfg, nil)
		if res.Allowed {
			t.Fatal("allowed without recaptcha token")
		}
		if captcha.calls != 0 {
			t.Error("verifier called without a token")
		}

		// The denial above must not have consumed the window.
		r := apiRequest("1.2.3.4")
		r.Header.Set(RecaptchaHeader, "tok")
		if res := limiter.Check(r, cfg, nil); !res.Allowed {
			t.Error("quota consumed by captcha denial")
		}
	})

	t.Run("failed verification denied", func(t *testing.T) {
		limiter := newTestLimiter(&captchaStub{verdict: false})
		cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 5, RequireRecaptcha: true}

		r := apiRequest("1.2.3.4")
		r.Header.Set(RecaptchaHeader, "tok")
		if res := limiter.Check(r, cfg, nil); res.Allowed {
			t.Error("allowed with failed verification")
		}
	})

	t.Run("passing verification admits", func(t *testing.T) {
		limiter := newTestLimiter(&captchaStub{verdict: true})
		cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 5, RequireRecaptcha: true}

		r := apiRequest("1.2.3.4")
		r.Header.Set(RecaptchaHeader, "tok")
		res := limiter.Check(r, cfg, nil)
		if !res.Allowed {
			t.Error("denied with passing verification")
		}
		if res.Remaining != 4 {
			t.Errorf("remaining = %d, want 4", res.Remaining)
		}
	})
}

func TestLimiterFailoverToMemory(t *testing.T) {
	fallback := NewMemoryStore(100, 1.5, 30*time.Minute)
	limiter := NewLimiter(failingStore{}, fallback, nil, false)
	cfg := &config.RateLimitConfig{Window: time.Minute, MaxRequests: 2}

	for i := 0; i < 2; i++ {
		if res := limiter.Check(apiRequest("1.2.3.4"), cfg, nil); !res.Allowed {
			t.Fatalf("request %d denied during failover", i+1)
		}
	}
	if res := limiter.Check(apiRequest("1.2.3.4"), cfg, nil); res.Allowed {
		t.Error("failover store did not enforce the limit")
	}
}
