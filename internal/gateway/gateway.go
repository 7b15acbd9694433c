package gateway

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/feliona/edge-gateway/internal/auth"
	"github.com/feliona/edge-gateway/internal/config"
	"github.com/feliona/edge-gateway/internal/errors"
	"github.com/feliona/edge-gateway/internal/logging"
	"github.com/feliona/edge-gateway/internal/metrics"
	"github.com/feliona/edge-gateway/internal/middleware"
	"github.com/feliona/edge-gateway/internal/ratelimit"
	"github.com/feliona/edge-gateway/internal/security"
	"go.uber.org/zap"
)

// Cache-Control for publicly cacheable pages.
const publicCacheControl = "public, max-age=3600, s-maxage=3600, stale-while-revalidate=86400"

// Block reasons reported in security metrics.
const (
	reasonAuthRequired = "Authentication required"
	reasonRateLimited  = "Rate limit exceeded"
	reasonCSRF         = "Invalid CSRF token"
	reasonInternal     = "Internal error"
)

// Gateway is the security pipeline in front of the application. Every
// request passes CORS, public-route short-circuit, CSRF, rate limiting,
// locale resolution, authentication and route policy, in that order, before
// being handed to next.
type Gateway struct {
	cfg       *config.Config
	routes    *config.Routes
	cors      *security.CorsPolicy
	headers   *security.HeadersManager
	auth      *auth.Service
	limiter   *ratelimit.Limiter
	collector *metrics.Collector
	next      http.Handler
}

// New assembles the pipeline around the upstream handler.
func New(
	cfg *config.Config,
	routes *config.Routes,
	cors *security.CorsPolicy,
	headers *security.HeadersManager,
	authSvc *auth.Service,
	limiter *ratelimit.Limiter,
	collector *metrics.Collector,
	next http.Handler,
) *Gateway {
	return &Gateway{
		cfg:       cfg,
		routes:    routes,
		cors:      cors,
		headers:   headers,
		auth:      authSvc,
		limiter:   limiter,
		collector: collector,
		next:      next,
	}
}

// Handler returns the gateway wrapped with its outer middleware.
func (g *Gateway) Handler() http.Handler {
	return middleware.NewChain(middleware.RequestID()).Then(g)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r)
	path := r.URL.Path
	nonce := security.NewNonce()

	var user *auth.SessionUser
	blocked := false
	blockReason := ""

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("gateway pipeline panic",
				zap.Any("panic", rec),
				zap.String("requestId", requestID),
				zap.String("path", path),
			)
			blocked = true
			blockReason = reasonInternal
			errors.ErrInternalServer.WriteJSON(w)
		}

		elapsed := time.Since(start)
		if g.cfg.IsProduction() && elapsed > g.cfg.SlowRequestThreshold {
			logging.Warn("slow gateway processing",
				zap.String("requestId", requestID),
				zap.String("path", path),
				zap.Duration("elapsed", elapsed),
			)
		}

		userID := ""
		if user != nil {
			userID = user.ID
		}
		g.collector.Emit(g.collector.Collect(requestID, r, userID, blocked, blockReason))
	}()

	if r.Method == http.MethodOptions {
		g.cors.HandlePreflight(w, r)
		return
	}

	g.cors.ApplyHeaders(w.Header(), r.Header.Get("Origin"))

	if g.routes.IsPublicRoute(path, g.cfg.SupportedLocales) {
		w.Header().Set("Cache-Control", publicCacheControl)
		g.finish(w, r, nonce, start)
		return
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		token := r.Header.Get(auth.CSRFHeader)
		if token == "" || !auth.ValidateCSRFToken(r, token) {
			blocked = true
			blockReason = reasonCSRF
			errors.ErrInvalidCSRF.WriteJSON(w)
			return
		}
	}

	if strings.HasPrefix(path, "/api/") {
		if rl := g.routes.RateLimits.Lookup(path); rl != nil {
			result := g.limiter.Check(r, rl, user)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.MaxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

			if !result.Allowed {
				blocked = true
				blockReason = reasonRateLimited
				retryAfter := int(time.Until(result.ResetTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				errors.ErrTooManyRequests.WithRetryAfter(retryAfter).WriteJSON(w)
				return
			}
		}
	}

	locale := resolveLocale(r, g.cfg)
	if !g.cfg.IsSupportedLocale(locale) {
		u := *r.URL
		u.Path = "/" + g.cfg.DefaultLocale + path
		http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
		return
	}
	setLocaleCookie(w, r, locale, g.cfg.IsProduction())
	w.Header().Set(LocaleHeader, locale)

	if rc := g.routes.Table.Lookup(path); rc != nil && rc.Type != config.RoutePublic {
		user = g.auth.GetUser(r)
		if user == nil {
			blocked = true
			blockReason = reasonAuthRequired
			redirectTo(w, r, "/login", url.Values{"callbackUrl": {path}})
			return
		}

		access := g.auth.ValidateAccess(user, rc)
		if !access.Allowed {
			blocked = true
			blockReason = access.Reason

			switch access.Reason {
			case auth.ReasonVerificationRequired:
				redirectTo(w, r, "/verify", url.Values{"callbackUrl": {path}})
			case auth.ReasonUpgradeRequired:
				redirectTo(w, r, "/pricing", url.Values{"upgrade": {"true"}, "callbackUrl": {path}})
			default:
				errors.ErrAccessDenied.WithMessage(access.Reason).WriteJSON(w)
			}
			return
		}

		token := auth.SetCSRFCookie(w, g.cfg.CSRFTokenLength, g.cfg.IsProduction())
		h := w.Header()
		h.Set(auth.CSRFHeader, token)
		h.Set("x-user-id", user.ID)
		h.Set("x-user-role", user.Role)
		h.Set("x-user-verified", strconv.FormatBool(user.Metadata.IsVerified))
		h.Set("x-subscription-tier", user.Tier())
	}

	// Authenticated callers have no business on the auth pages.
	if (path == "/login" || path == "/register") && user != nil {
		callback := r.URL.Query().Get("callbackUrl")
		if callback == "" {
			callback = "/dashboard"
		}
		http.Redirect(w, r, callback, http.StatusTemporaryRedirect)
		return
	}

	g.finish(w, r, nonce, start)
}

// finish stamps the security headers and hands the request to the upstream
// handler. The processing-time header reflects gateway overhead only.
func (g *Gateway) finish(w http.ResponseWriter, r *http.Request, nonce string, start time.Time) {
	g.headers.Apply(w.Header(), nonce)
	if g.cfg.IsProduction() {
		w.Header().Set("x-processing-time", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	}
	g.next.ServeHTTP(w, r)
}

func redirectTo(w http.ResponseWriter, r *http.Request, path string, query url.Values) {
	http.Redirect(w, r, path+"?"+query.Encode(), http.StatusTemporaryRedirect)
}
