package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feliona/edge-gateway/internal/logging"
	"github.com/feliona/edge-gateway/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	// Anonymized replaces client-identifying fields when GDPR applies and
	// the caller has not consented.
	Anonymized = "anonymized"

	ConsentCookie = "cookie-consent"

	userAgentMaxLen = 200
)

// SecurityMetrics is the per-request security record.
type SecurityMetrics struct {
	RequestID string
	Timestamp int64
	IP        string
	UserAgent string
	Path      string
	Method    string
	UserID    string
	Blocked   bool
	Reason    string
}

// Collector assembles and emits per-request security records. Emission is
// asynchronous and never affects the request outcome.
type Collector struct {
	gdprEnabled bool
	production  bool

	requestsTotal *prometheus.CounterVec
	blockedTotal  *prometheus.CounterVec
}

// NewCollector creates a collector and registers its counters. A nil
// registerer targets the default registry.
func NewCollector(gdprEnabled, production bool, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		gdprEnabled: gdprEnabled,
		production:  production,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "requests_total",
			Help:      "Requests processed, by method and outcome.",
		}, []string{"method", "blocked"}),
		blockedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "blocked_total",
			Help:      "Blocked requests, by reason.",
		}, []string{"reason"}),
	}
}

// Collect builds the record for one request. Under GDPR, IP and user agent
// are replaced with a sentinel unless the consent cookie is set.
func (c *Collector) Collect(requestID string, r *http.Request, userID string, blocked bool, reason string) SecurityMetrics {
	consented := false
	if cookie, err := r.Cookie(ConsentCookie); err == nil && cookie.Value == "true" {
		consented = true
	}

	ip := ratelimit.ClientIP(r)
	ua := r.Header.Get("User-Agent")
	if len(ua) > userAgentMaxLen {
		ua = ua[:userAgentMaxLen]
	}
	if ua == "" {
		ua = "unknown"
	}
	if c.gdprEnabled && !consented {
		ip = Anonymized
		ua = Anonymized
	}

	return SecurityMetrics{
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		IP:        ip,
		UserAgent: ua,
		Path:      r.URL.Path,
		Method:    r.Method,
		UserID:    userID,
		Blocked:   blocked,
		Reason:    reason,
	}
}

// Emit records the metrics asynchronously. A panic in emission is swallowed;
// metrics never take a request down.
func (c *Collector) Emit(m SecurityMetrics) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Warn("metrics emission failed", zap.Any("panic", rec))
			}
		}()
		c.emit(m)
	}()
}

func (c *Collector) emit(m SecurityMetrics) {
	fields := []zap.Field{
		zap.String("requestId", m.RequestID),
		zap.Int64("timestamp", m.Timestamp),
		zap.String("path", m.Path),
		zap.String("method", m.Method),
		zap.String("userId", m.UserID),
		zap.Bool("blocked", m.Blocked),
		zap.String("reason", m.Reason),
	}
	// The GDPR-safe subset omits IP and user agent even when they carry
	// the sentinel.
	if !c.gdprEnabled {
		fields = append(fields,
			zap.String("ip", m.IP),
			zap.String("userAgent", m.UserAgent),
		)
	}
	logging.Info("request processed", fields...)

	// Counters are exported in production only.
	if c.production {
		blocked := "false"
		if m.Blocked {
			blocked = "true"
		}
		c.requestsTotal.WithLabelValues(m.Method, blocked).Inc()
		if m.Blocked {
			c.blockedTotal.WithLabelValues(normalizeReason(m.Reason)).Inc()
		}
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// normalizeReason keeps the blocked-reason label space small.
func normalizeReason(reason string) string {
	if reason == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(reason, " ", "_"))
}
