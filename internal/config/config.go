package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration for the edge gateway. It is parsed
// from the environment once at startup and read-only afterwards. Invalid
// configuration aborts startup, with the single exception of CORS origins
// which degrade to a safe fallback (see internal/security).
type Config struct {
	// Deployment
	Environment string `env:"APP_ENV"     envDefault:"development"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	OpsAddr     string `env:"OPS_ADDR"    envDefault:":9090"`
	UpstreamURL string `env:"UPSTREAM_URL" envDefault:"http://127.0.0.1:3000"`

	// External identity provider
	AuthProviderURL string        `env:"AUTH_PROVIDER_URL,required"`
	AuthProviderKey string        `env:"AUTH_PROVIDER_KEY,required"`
	AuthTimeout     time.Duration `env:"AUTH_TIMEOUT" envDefault:"3s"`

	// Distributed rate-limit store. Optional: when RedisAddr is empty the
	// gateway falls back to the bounded in-process counter cache, which is
	// only correct within a single instance.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// reCAPTCHA verification. Verification fails closed when the secret is
	// unset.
	RecaptchaSecret    string        `env:"RECAPTCHA_SECRET_KEY"`
	RecaptchaThreshold float64       `env:"RECAPTCHA_SCORE_THRESHOLD" envDefault:"0.5"`
	RecaptchaVerifyURL string        `env:"RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	RecaptchaTimeout   time.Duration `env:"RECAPTCHA_TIMEOUT" envDefault:"3s"`

	// Localization
	SupportedLocales []string `env:"SUPPORTED_LOCALES" envDefault:"en,ru,es,fr,de"`
	DefaultLocale    string   `env:"DEFAULT_LOCALE"    envDefault:"en"`

	// Privacy and diagnostics
	DebugLogging bool `env:"DEBUG_LOGGING" envDefault:"false"`
	GDPREnabled  bool `env:"GDPR_ENABLED"  envDefault:"true"`

	// Session cache
	SessionCacheTTL  time.Duration `env:"SESSION_CACHE_TTL"  envDefault:"5m"`
	SessionCacheSize int           `env:"SESSION_CACHE_SIZE" envDefault:"1000"`

	// CSRF
	CSRFTokenLength int `env:"CSRF_TOKEN_LENGTH" envDefault:"32"`

	// Feature flags gating route access
	FeatureCreatorEconomy bool `env:"FEATURE_CREATOR_ECONOMY" envDefault:"false"`
	FeatureXRSupport      bool `env:"FEATURE_XR_SUPPORT"      envDefault:"false"`
	FeatureAdvancedAI     bool `env:"FEATURE_ADVANCED_AI"     envDefault:"false"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"https://feliona.ai,https://feliona.app"`

	// Rate-limit fallback cache bounds
	CacheTTLMultiplier float64       `env:"CACHE_TTL_MULTIPLIER"  envDefault:"1.5"`
	RateLimitCacheSize int           `env:"RATE_LIMIT_CACHE_SIZE" envDefault:"3000"`
	RateLimitMaxTTL    time.Duration `env:"RATE_LIMIT_MAX_TTL"    envDefault:"30m"`

	// Performance monitoring
	SlowRequestThreshold time.Duration `env:"SLOW_REQUEST_THRESHOLD" envDefault:"1s"`

	// Optional YAML file overriding the built-in route tables
	RoutesFile string `env:"ROUTES_FILE"`
}

// Load parses environment variables into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("config: unknown APP_ENV %q", c.Environment)
	}

	if _, err := url.ParseRequestURI(c.AuthProviderURL); err != nil {
		return fmt.Errorf("config: invalid AUTH_PROVIDER_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.UpstreamURL); err != nil {
		return fmt.Errorf("config: invalid UPSTREAM_URL: %w", err)
	}

	if c.RecaptchaThreshold < 0 || c.RecaptchaThreshold > 1 {
		return fmt.Errorf("config: RECAPTCHA_SCORE_THRESHOLD %v outside [0,1]", c.RecaptchaThreshold)
	}

	if len(c.SupportedLocales) == 0 {
		return fmt.Errorf("config: SUPPORTED_LOCALES is empty")
	}
	if !c.IsSupportedLocale(c.DefaultLocale) {
		return fmt.Errorf("config: DEFAULT_LOCALE %q not in SUPPORTED_LOCALES", c.DefaultLocale)
	}

	if c.SessionCacheSize <= 0 {
		return fmt.Errorf("config: SESSION_CACHE_SIZE must be positive")
	}
	if c.CSRFTokenLength <= 0 {
		return fmt.Errorf("config: CSRF_TOKEN_LENGTH must be positive")
	}

	if c.CacheTTLMultiplier < 1 || c.CacheTTLMultiplier > 3 {
		return fmt.Errorf("config: CACHE_TTL_MULTIPLIER %v outside [1,3]", c.CacheTTLMultiplier)
	}
	if c.RateLimitCacheSize < 1000 || c.RateLimitCacheSize > 10000 {
		return fmt.Errorf("config: RATE_LIMIT_CACHE_SIZE %d outside [1000,10000]", c.RateLimitCacheSize)
	}

	return nil
}

// IsDevelopment reports whether the gateway runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsSupportedLocale reports whether the locale is in the supported set.
func (c *Config) IsSupportedLocale(locale string) bool {
	for _, l := range c.SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// FeatureEnabled resolves a route feature flag by name. Unknown flags are
// disabled, which keeps flag-gated routes closed rather than open.
func (c *Config) FeatureEnabled(name string) bool {
	switch name {
	case "FEATURE_CREATOR_ECONOMY":
		return c.FeatureCreatorEconomy
	case "FEATURE_XR_SUPPORT":
		return c.FeatureXRSupport
	case "FEATURE_ADVANCED_AI":
		return c.FeatureAdvancedAI
	}
	return false
}
