package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/feliona/edge-gateway/internal/auth"
	"github.com/feliona/edge-gateway/internal/config"
	"github.com/feliona/edge-gateway/internal/logging"
	"go.uber.org/zap"
)

// RecaptchaHeader carries the client's reCAPTCHA token on protected routes.
const RecaptchaHeader = "x-recaptcha-token"

// CaptchaVerifier gates abuse-prone routes behind a human check.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, clientIP string) bool
}

// Limiter applies per-route fixed-window admission. Identity is the user ID
// when authenticated, the client IP otherwise. A Redis store is preferred
// when available; on Redis failure the limiter fails over to the in-process
// store for that request instead of failing open.
type Limiter struct {
	primary   Store
	fallback  *MemoryStore
	captcha   CaptchaVerifier
	devBypass bool
}

// NewLimiter creates a limiter. primary may be nil, in which case the
// in-process store serves every check.
func NewLimiter(primary Store, fallback *MemoryStore, captcha CaptchaVerifier, devBypass bool) *Limiter {
	return &Limiter{
		primary:   primary,
		fallback:  fallback,
		captcha:   captcha,
		devBypass: devBypass,
	}
}

// Check runs the admission decision for one request. user may be nil.
func (l *Limiter) Check(r *http.Request, cfg *config.RateLimitConfig, user *auth.SessionUser) Result {
	if l.devBypass {
		return Result{Allowed: true, Remaining: cfg.MaxRequests, ResetTime: time.Now().Add(cfg.Window)}
	}

	if user != nil && contains(cfg.SkipForRoles, user.Role) {
		return Result{Allowed: true, Remaining: cfg.MaxRequests, ResetTime: time.Now().Add(cfg.Window)}
	}

	ip := ClientIP(r)
	identity := ip
	if user != nil {
		identity = user.ID
	}
	key := "rate_limit:" + r.URL.Path + ":" + identity

	// The captcha gate denies without consuming window quota.
	if cfg.RequireRecaptcha {
		token := r.Header.Get(RecaptchaHeader)
		if token == "" || l.captcha == nil || !l.captcha.Verify(r.Context(), token, ip) {
			logging.Warn("recaptcha gate rejected request",
				zap.String("path", r.URL.Path),
				zap.String("ip", ip),
				zap.String("identifier", identity),
			)
			return Result{Allowed: false, Remaining: 0, ResetTime: time.Now().Add(cfg.Window)}
		}
	}

	store := l.primary
	if store == nil {
		store = l.fallback
	}

	result, err := store.Incr(r.Context(), key, cfg.Window, cfg.MaxRequests)
	if err != nil {
		logging.Warn("rate limit store unavailable, using in-process fallback",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		result, err = l.fallback.Incr(r.Context(), key, cfg.Window, cfg.MaxRequests)
		if err != nil {
			// The memory store cannot actually fail; deny to stay safe.
			return Result{Allowed: false, Remaining: 0, ResetTime: time.Now().Add(cfg.Window)}
		}
	}

	if !result.Allowed {
		logging.Warn("rate limit exceeded",
			zap.String("path", r.URL.Path),
			zap.String("ip", ip),
			zap.String("identifier", identity),
			zap.Int("limit", cfg.MaxRequests),
			zap.Duration("window", cfg.Window),
		)
	}

	return result
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
