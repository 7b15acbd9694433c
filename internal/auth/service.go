package auth

import (
	"net/http"
	"time"

	"github.com/feliona/edge-gateway/internal/config"
	"github.com/feliona/edge-gateway/internal/logging"
	"go.uber.org/zap"
)

// SessionCookie is the cookie carrying the opaque session token.
const SessionCookie = "session-token"

// Access-failure reasons. These are stable strings: the orchestrator
// dispatches remediation redirects on them.
const (
	ReasonVerificationRequired = "Email verification required"
	ReasonInsufficientRole     = "Insufficient permissions"
	ReasonUpgradeRequired      = "Subscription upgrade required"
	ReasonFeatureDisabled      = "Feature not enabled"
)

// AccessResult is the outcome of a route-policy evaluation.
type AccessResult struct {
	Allowed bool
	Reason  string
}

// FlagResolver answers feature-flag lookups for route policy.
type FlagResolver interface {
	FeatureEnabled(name string) bool
}

// Service resolves caller identity and evaluates route-access policy.
// Provider errors never propagate: they degrade to "unauthenticated".
type Service struct {
	cache    *SessionCache
	provider *ProviderClient
	flags    FlagResolver
}

// NewService creates the authentication service.
func NewService(cache *SessionCache, provider *ProviderClient, flags FlagResolver) *Service {
	return &Service{cache: cache, provider: provider, flags: flags}
}

// GetUser resolves the caller from the session cookie. The session cache is
// consulted first; on a miss the identity provider is called and the cache
// populated. Any provider failure invalidates the cached entry and resolves
// to nil.
func (s *Service) GetUser(r *http.Request) *SessionUser {
	start := time.Now()

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	token := cookie.Value

	if user := s.cache.Get(token); user != nil {
		logging.Debug("auth check (cached)", zap.String("userId", user.ID))
		return user
	}

	user, err := s.provider.GetUser(r.Context(), token)
	if err != nil {
		logging.Error("authentication check failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		s.cache.Invalidate(token)
		return nil
	}

	s.cache.Set(token, user)
	logging.Debug("auth check",
		zap.Duration("duration", time.Since(start)),
		zap.String("userId", user.ID),
	)
	return user
}

// ValidateAccess evaluates route policy in fixed order, stopping at the
// first failure: verification, role, subscription tier, feature flag.
func (s *Service) ValidateAccess(user *SessionUser, rc *config.RouteConfig) AccessResult {
	if rc.RequireVerification && !user.Metadata.IsVerified {
		return AccessResult{Allowed: false, Reason: ReasonVerificationRequired}
	}

	if len(rc.AllowedRoles) > 0 && !contains(rc.AllowedRoles, user.Role) {
		return AccessResult{Allowed: false, Reason: ReasonInsufficientRole}
	}

	if len(rc.SubscriptionTiers) > 0 && !contains(rc.SubscriptionTiers, user.Tier()) {
		return AccessResult{Allowed: false, Reason: ReasonUpgradeRequired}
	}

	if rc.FeatureFlag != "" && !s.flags.FeatureEnabled(rc.FeatureFlag) {
		return AccessResult{Allowed: false, Reason: ReasonFeatureDisabled}
	}

	return AccessResult{Allowed: true}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
