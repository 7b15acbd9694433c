package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feliona/edge-gateway/internal/auth"
	"github.com/feliona/edge-gateway/internal/config"
	"github.com/feliona/edge-gateway/internal/logging"
	"github.com/feliona/edge-gateway/internal/metrics"
	"github.com/feliona/edge-gateway/internal/ratelimit"
	"github.com/feliona/edge-gateway/internal/security"
	"go.uber.org/zap"
)

// Server wraps the gateway pipeline with HTTP serving: the public listener
// in front of the upstream, and a separate ops listener for health and
// metrics.
type Server struct {
	gateway   *Gateway
	cfg       *config.Config
	httpSrv   *http.Server
	opsSrv    *http.Server
	redis     *redis.Client
	startTime time.Time
}

// NewServer wires every pipeline component from configuration and builds
// the reverse proxy to the upstream application.
func NewServer(cfg *config.Config) (*Server, error) {
	routes, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		return nil, err
	}

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse upstream URL: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.Error("upstream proxy error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		w.WriteHeader(http.StatusBadGateway)
	}

	var redisClient *redis.Client
	var primary ratelimit.Store
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		primary = ratelimit.NewRedisStore(redisClient)
	}
	fallback := ratelimit.NewMemoryStore(cfg.RateLimitCacheSize, cfg.CacheTTLMultiplier, cfg.RateLimitMaxTTL)
	captcha := security.NewRecaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaThreshold, cfg.RecaptchaVerifyURL, cfg.RecaptchaTimeout)
	limiter := ratelimit.NewLimiter(primary, fallback, captcha, cfg.IsDevelopment())

	logging.Info("rate limiter initialized",
		zap.Int("cacheSize", cfg.RateLimitCacheSize),
		zap.Duration("maxTTL", cfg.RateLimitMaxTTL),
		zap.Float64("multiplier", cfg.CacheTTLMultiplier),
		zap.Bool("redisEnabled", redisClient != nil),
	)

	sessionCache := auth.NewSessionCache(cfg.SessionCacheSize, cfg.SessionCacheTTL)
	provider := auth.NewProviderClient(cfg.AuthProviderURL, cfg.AuthProviderKey, cfg.AuthTimeout)
	authSvc := auth.NewService(sessionCache, provider, cfg)

	cors := security.NewCorsPolicy(cfg.CORSAllowedOrigins, cfg.IsProduction())
	headers := security.NewHeadersManager(cfg.IsProduction(), cors.Result().IsValid)
	collector := metrics.NewCollector(cfg.GDPREnabled, cfg.IsProduction(), nil)

	gw := New(cfg, routes, cors, headers, authSvc, limiter, collector, proxy)

	s := &Server{
		gateway:   gw,
		cfg:       cfg,
		redis:     redisClient,
		startTime: time.Now(),
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.opsSrv = &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      s.opsHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s, nil
}

// opsHandler serves the out-of-band endpoints: liveness and Prometheus.
func (s *Server) opsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","uptime":%q}`, time.Since(s.startTime).Round(time.Second))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Run starts both listeners and blocks until SIGINT or SIGTERM, then shuts
// down gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 2)

	go func() {
		logging.Info("gateway listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logging.Info("ops listening", zap.String("addr", s.cfg.OpsAddr))
		if err := s.opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info("shutting down gracefully", zap.String("signal", sig.String()))
		return s.Shutdown(30 * time.Second)
	}
}

// Shutdown stops both listeners and closes the Redis client.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.opsSrv.Shutdown(ctx); err != nil {
		logging.Error("ops server shutdown error", zap.Error(err))
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		logging.Error("gateway server shutdown error", zap.Error(err))
		return err
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logging.Error("redis close error", zap.Error(err))
		}
	}

	logging.Info("server shutdown complete")
	return nil
}
