package auth

// Subscription tiers recognised by route policy.
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// SessionUser is the identity resolved for one request. It is immutable
// once constructed and lives for a single request unless session-cached.
type SessionUser struct {
	ID       string       `json:"id"`
	Role     string       `json:"role"`
	Email    string       `json:"email,omitempty"`
	Metadata UserMetadata `json:"user_metadata"`
	Provider string       `json:"provider,omitempty"`
}

// UserMetadata carries the policy-relevant attributes set by the identity
// provider.
type UserMetadata struct {
	IsVerified       bool   `json:"is_verified"`
	SubscriptionTier string `json:"subscription_tier,omitempty"`
}

// Tier returns the user's subscription tier, defaulting to free.
func (u *SessionUser) Tier() string {
	if u.Metadata.SubscriptionTier == "" {
		return TierFree
	}
	return u.Metadata.SubscriptionTier
}

// CachedSession wraps a SessionUser with its cache lifetime. Owned
// exclusively by the SessionCache.
type CachedSession struct {
	User         *SessionUser
	ExpiresAt    int64 // epoch milliseconds
	LastVerified int64 // epoch milliseconds
}
