package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// RouteType classifies a route's access policy.
type RouteType string

const (
	RoutePublic    RouteType = "public"
	RouteProtected RouteType = "protected"
	RouteAdmin     RouteType = "admin"
	RouteCreator   RouteType = "creator"
)

// RouteConfig is the static access policy for a route path or pattern.
type RouteConfig struct {
	Type                RouteType `yaml:"type"`
	RequireVerification bool      `yaml:"require_verification"`
	AllowedRoles        []string  `yaml:"allowed_roles"`
	FeatureFlag         string    `yaml:"feature_flag"`
	SubscriptionTiers   []string  `yaml:"subscription_tiers"`
}

// RateLimitConfig is the static rate-limit policy for an API route.
// BurstLimit is accepted and forwarded to the store but does not change the
// admission decision; only MaxRequests does.
type RateLimitConfig struct {
	Window           time.Duration `yaml:"window"`
	MaxRequests      int           `yaml:"max_requests"`
	RequireRecaptcha bool          `yaml:"require_recaptcha"`
	SkipForRoles     []string      `yaml:"skip_for_roles"`
	BurstLimit       int           `yaml:"burst_limit"`
}

// RouteEntry pairs a declared path with its policy. Declaration order is
// significant: pattern lookup returns the first match.
type RouteEntry struct {
	Path   string      `yaml:"path"`
	Config RouteConfig `yaml:"config"`
}

type routePattern struct {
	re     *regexp.Regexp
	config RouteConfig
	path   string
}

// RouteTable answers route-policy lookups. Exact matches win over patterns;
// patterns are evaluated in declaration order.
type RouteTable struct {
	exact    map[string]RouteConfig
	patterns []routePattern
}

// NewRouteTable compiles a route table from ordered entries. Paths may use
// ":name" segments which match a single path segment.
func NewRouteTable(entries []RouteEntry) (*RouteTable, error) {
	t := &RouteTable{
		exact: make(map[string]RouteConfig, len(entries)),
	}
	for _, e := range entries {
		t.exact[e.Path] = e.Config
		re, err := compilePathPattern(e.Path)
		if err != nil {
			return nil, fmt.Errorf("config: route pattern %q: %w", e.Path, err)
		}
		t.patterns = append(t.patterns, routePattern{re: re, config: e.Config, path: e.Path})
	}
	return t, nil
}

// Lookup returns the policy for a path, or nil when the path has no explicit
// policy.
func (t *RouteTable) Lookup(path string) *RouteConfig {
	if cfg, ok := t.exact[path]; ok {
		return &cfg
	}
	for _, p := range t.patterns {
		if p.re.MatchString(path) {
			cfg := p.config
			return &cfg
		}
	}
	return nil
}

// compilePathPattern turns a declared path into an anchored regexp.
// ":name" segments match one path segment; a trailing slash is tolerated.
func compilePathPattern(path string) (*regexp.Regexp, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	var b strings.Builder
	b.WriteString("^")
	for _, seg := range segments {
		b.WriteString("/")
		if strings.HasPrefix(seg, ":") {
			b.WriteString("[^/]+")
		} else {
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("/?$")
	return regexp.Compile(b.String())
}

// RateLimitTable answers rate-limit policy lookups by exact path only.
type RateLimitTable map[string]RateLimitConfig

// Lookup returns the rate-limit policy for a path, or nil.
func (t RateLimitTable) Lookup(path string) *RateLimitConfig {
	if cfg, ok := t[path]; ok {
		return &cfg
	}
	return nil
}

// DefaultRouteEntries is the built-in route-policy table. Order matters for
// pattern matching.
func DefaultRouteEntries() []RouteEntry {
	return []RouteEntry{
		{Path: "/dashboard", Config: RouteConfig{Type: RouteProtected}},
		{Path: "/chats", Config: RouteConfig{Type: RouteProtected}},
		{Path: "/profile", Config: RouteConfig{Type: RouteProtected}},
		{Path: "/create", Config: RouteConfig{Type: RouteProtected}},
		{Path: "/creator", Config: RouteConfig{
			Type:                RouteCreator,
			RequireVerification: true,
			FeatureFlag:         "FEATURE_CREATOR_ECONOMY",
			SubscriptionTiers:   []string{"premium", "enterprise"},
		}},
		{Path: "/admin", Config: RouteConfig{
			Type:         RouteAdmin,
			AllowedRoles: []string{"admin", "moderator"},
		}},
		{Path: "/xr", Config: RouteConfig{
			Type:              RouteProtected,
			FeatureFlag:       "FEATURE_XR_SUPPORT",
			SubscriptionTiers: []string{"premium", "enterprise"},
		}},
		{Path: "/ai/advanced", Config: RouteConfig{
			Type:              RouteProtected,
			FeatureFlag:       "FEATURE_ADVANCED_AI",
			SubscriptionTiers: []string{"enterprise"},
		}},
	}
}

// DefaultRateLimits is the built-in rate-limit table, keyed by exact path.
func DefaultRateLimits() RateLimitTable {
	return RateLimitTable{
		"/api/ai/completion": {
			Window:       time.Minute,
			MaxRequests:  30,
			BurstLimit:   5,
			SkipForRoles: []string{"premium", "enterprise"},
		},
		"/api/ai/advanced": {
			Window:       time.Minute,
			MaxRequests:  10,
			SkipForRoles: []string{"enterprise"},
		},
		"/api/chat/messages": {
			Window:      time.Minute,
			MaxRequests: 100,
			BurstLimit:  20,
		},
		"/api/auth/register": {
			Window:           15 * time.Minute,
			MaxRequests:      5,
			RequireRecaptcha: true,
		},
		"/api/auth/login": {
			Window:           5 * time.Minute,
			MaxRequests:      10,
			RequireRecaptcha: true,
		},
		"/api/upload": {
			Window:       time.Minute,
			MaxRequests:  20,
			SkipForRoles: []string{"premium", "enterprise"},
		},
	}
}

// DefaultPublicRoutes is the set of paths served without auth or rate
// limiting.
func DefaultPublicRoutes() map[string]struct{} {
	paths := []string{
		"/", "/discover", "/about", "/contact", "/privacy", "/terms",
		"/login", "/register", "/verify", "/pricing",
		"/api/health", "/api/webhooks/stripe",
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// StaticPrefixes are path prefixes always treated as public static assets.
var StaticPrefixes = []string{
	"/api/public/",
	"/_next/",
	"/favicon",
	"/robots",
	"/sitemap",
}

// LocalizedPublicPaths returns the public page paths under a locale prefix.
func LocalizedPublicPaths(locale string) []string {
	return []string{
		"/" + locale + "/discover",
		"/" + locale + "/about",
		"/" + locale + "/contact",
		"/" + locale + "/privacy",
		"/" + locale + "/terms",
		"/" + locale + "/pricing",
	}
}

// Routes bundles the compiled lookup tables consumed by the gateway.
type Routes struct {
	Table      *RouteTable
	RateLimits RateLimitTable
	Public     map[string]struct{}
}

// routesFile is the YAML shape of an external route-table override.
type routesFile struct {
	Routes     []RouteEntry               `yaml:"routes"`
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits"`
	Public     []string                   `yaml:"public"`
}

// LoadRoutes builds the route tables, applying the optional YAML override
// file when configured. A partial override replaces only the sections it
// declares.
func LoadRoutes(path string) (*Routes, error) {
	entries := DefaultRouteEntries()
	rateLimits := DefaultRateLimits()
	public := DefaultPublicRoutes()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read routes file: %w", err)
		}
		var rf routesFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("config: parse routes file: %w", err)
		}
		if len(rf.Routes) > 0 {
			entries = rf.Routes
		}
		if len(rf.RateLimits) > 0 {
			rateLimits = RateLimitTable(rf.RateLimits)
		}
		if len(rf.Public) > 0 {
			public = make(map[string]struct{}, len(rf.Public))
			for _, p := range rf.Public {
				public[p] = struct{}{}
			}
		}
	}

	table, err := NewRouteTable(entries)
	if err != nil {
		return nil, err
	}
	return &Routes{Table: table, RateLimits: rateLimits, Public: public}, nil
}

// IsPublicRoute reports whether a path bypasses auth and rate limiting:
// exact public paths, static-asset prefixes, the bare locale roots, and the
// localized variants of public pages.
func (r *Routes) IsPublicRoute(path string, locales []string) bool {
	if _, ok := r.Public[path]; ok {
		return true
	}
	for _, prefix := range StaticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, locale := range locales {
		if path == "/"+locale {
			return true
		}
		for _, lp := range LocalizedPublicPaths(locale) {
			if path == lp {
				return true
			}
		}
	}
	return false
}
