package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/feliona/edge-gateway/internal/logging"
	"go.uber.org/zap"
)

const (
	recaptchaCacheSize = 1000
	recaptchaCacheTTL  = 5 * time.Minute
)

// RecaptchaVerifier validates reCAPTCHA v3 tokens against the remote verify
// endpoint. Verification is fail-closed: any transport or decode error counts
// as a failed check. Successful and failed verdicts are cached per (token, ip)
// so retries within the window do not re-hit the verify API.
type RecaptchaVerifier struct {
	secretKey string
	threshold float64
	verifyURL string
	client    *http.Client
	cache     *expirable.LRU[string, bool]
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// NewRecaptchaVerifier creates a verifier. An empty secret key disables
// verification: every check fails until a key is configured.
func NewRecaptchaVerifier(secretKey string, threshold float64, verifyURL string, timeout time.Duration) *RecaptchaVerifier {
	if threshold <= 0 {
		threshold = 0.5
	}
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &RecaptchaVerifier{
		secretKey: secretKey,
		threshold: threshold,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
		cache:     expirable.NewLRU[string, bool](recaptchaCacheSize, nil, recaptchaCacheTTL),
	}
}

// Verify checks a token submitted from the given client IP. Missing tokens,
// missing configuration, low scores and upstream failures all yield false.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, clientIP string) bool {
	if token == "" {
		return false
	}
	if v.secretKey == "" {
		logging.Error("recaptcha secret key not configured")
		return false
	}

	cacheKey := token + ":" + clientIP
	if verdict, ok := v.cache.Get(cacheKey); ok {
		return verdict
	}

	verdict, err := v.verify(ctx, token, clientIP)
	if err != nil {
		logging.Error("recaptcha verification failed",
			zap.Error(err),
			zap.String("clientIp", clientIP),
		)
		v.cache.Add(cacheKey, false)
		return false
	}

	v.cache.Add(cacheKey, verdict)
	return verdict
}

func (v *RecaptchaVerifier) verify(ctx context.Context, token, clientIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", v.secretKey)
	form.Set("response", token)
	if clientIP != "" && clientIP != "unknown" {
		form.Set("remoteip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("security: create recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("security: recaptcha request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("security: recaptcha verify returned %d", resp.StatusCode)
	}

	var rr recaptchaResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rr); err != nil {
		return false, fmt.Errorf("security: decode recaptcha response: %w", err)
	}

	if !rr.Success {
		logging.Warn("recaptcha check unsuccessful",
			zap.Strings("errorCodes", rr.ErrorCodes),
			zap.String("clientIp", clientIP),
		)
		return false, nil
	}
	if rr.Score < v.threshold {
		logging.Warn("recaptcha score below threshold",
			zap.Float64("score", rr.Score),
			zap.Float64("threshold", v.threshold),
			zap.String("action", rr.Action),
			zap.String("clientIp", clientIP),
		)
		return false, nil
	}
	return true, nil
}
