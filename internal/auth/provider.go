package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderClient resolves session tokens against the external identity
// provider over HTTP. Calls are bounded by a timeout; any failure is
// reported as an error and the caller treats the request as
// unauthenticated.
type ProviderClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// providerUser is the provider's wire representation of a user.
type providerUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AppMetadata struct {
		Role     string `json:"role"`
		Provider string `json:"provider"`
	} `json:"app_metadata"`
	UserMetadata struct {
		IsVerified       bool   `json:"is_verified"`
		SubscriptionTier string `json:"subscription_tier"`
	} `json:"user_metadata"`
}

// NewProviderClient creates an identity-provider client.
func NewProviderClient(baseURL, apiKey string, timeout time.Duration) *ProviderClient {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &ProviderClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetUser fetches the user bound to a session token. A nil user with nil
// error never occurs: absence is an error.
func (p *ProviderClient) GetUser(ctx context.Context, sessionToken string) (*SessionUser, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: create provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("auth: provider returned %d", resp.StatusCode)
	}

	var pu providerUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&pu); err != nil {
		return nil, fmt.Errorf("auth: decode provider response: %w", err)
	}
	if pu.ID == "" {
		return nil, fmt.Errorf("auth: provider returned no user")
	}

	role := pu.AppMetadata.Role
	if role == "" {
		role = "user"
	}

	return &SessionUser{
		ID:    pu.ID,
		Role:  role,
		Email: pu.Email,
		Metadata: UserMetadata{
			IsVerified:       pu.UserMetadata.IsVerified,
			SubscriptionTier: pu.UserMetadata.SubscriptionTier,
		},
		Provider: pu.AppMetadata.Provider,
	}, nil
}
