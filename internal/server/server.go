// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/crsarena/arena-eval/internal/bus"
	"github.com/crsarena/arena-eval/internal/cache"
	"github.com/crsarena/arena-eval/internal/config"
	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/metrics"
	"github.com/crsarena/arena-eval/internal/observability"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
	"github.com/crsarena/arena-eval/internal/pkg/middleware"
	"github.com/crsarena/arena-eval/internal/source"
)

// Server is the main HTTP server that wires all services together.
type Server struct {
	cfg        Config
	log        *logger.Logger
	httpServer *http.Server
	handler    http.Handler

	// Services
	evaluator *evaluation.Evaluator
	metrics   *metrics.Metrics
	bus       bus.Bus
	cache     cache.Cache

	// Handlers
	evalHandler   *evaluation.Handler
	reportHandler *ReportHandler

	limiterCancel   context.CancelFunc
	shutdownTracing observability.ShutdownFunc

	mu      sync.RWMutex
	started bool
}

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration

	// MaxUploadBytes caps run uploads.
	MaxUploadBytes int64

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// RateLimit is requests per second per client on evaluation routes.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the rate limiter burst size.
	RateBurst int

	// CORSOrigins is a comma-separated origin allow-list.
	CORSOrigins string
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxUploadBytes:  evaluation.DefaultMaxUploadBytes,
		MetricsPath:     "/metrics",
		CORSOrigins:     "*",
	}
}

// ConfigFrom derives the server configuration from application config.
func ConfigFrom(appCfg *config.Config, version string) Config {
	cfg := DefaultConfig()
	cfg.Host = appCfg.Host
	cfg.Port = appCfg.Port
	cfg.Version = version
	cfg.MaxUploadBytes = appCfg.Data.MaxUploadBytes
	cfg.RateLimit = appCfg.Security.RateLimit
	cfg.RateBurst = appCfg.Security.RateBurst
	cfg.CORSOrigins = appCfg.Security.CORSOrigins
	cfg.MetricsPath = ""
	if appCfg.Observability.MetricsEnabled {
		cfg.MetricsPath = appCfg.Observability.MetricsPath
	}
	return cfg
}

// Services are the collaborators a Server routes to. Metrics, Bus and Cache
// are optional and only closed by the server.
type Services struct {
	Evaluator *evaluation.Evaluator
	Metrics   *metrics.Metrics
	Bus       bus.Bus
	Cache     cache.Cache
}

// New creates a server over already constructed services.
func New(cfg Config, svc Services, log *logger.Logger) (*Server, error) {
	if svc.Evaluator == nil {
		return nil, errors.New("server requires an evaluator")
	}
	if log == nil {
		log = logger.Discard()
	}

	s := &Server{
		cfg:           cfg,
		log:           log,
		evaluator:     svc.Evaluator,
		metrics:       svc.Metrics,
		bus:           svc.Bus,
		cache:         svc.Cache,
		evalHandler:   evaluation.NewHandler(svc.Evaluator, cfg.MaxUploadBytes),
		reportHandler: NewReportHandler(svc.Evaluator, cfg.MaxUploadBytes),
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Build loads the reference data and constructs every service from appCfg.
func Build(ctx context.Context, appCfg *config.Config, version string, log *logger.Logger) (*Server, error) {
	_, shutdownTracing, err := observability.SetupTracing(observability.TracingConfig{
		Enabled:     appCfg.Observability.TracingEnabled,
		ServiceName: "arena-eval",
		SampleRatio: appCfg.Observability.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	m := metrics.New()

	loader := source.NewLoader(appCfg.Data.FetchTimeout)
	ref, err := source.LoadReference(ctx, loader, appCfg.Data.Gold, appCfg.Data.Baselines, log)
	if err != nil {
		return nil, fmt.Errorf("loading reference data: %w", err)
	}
	m.SetReferenceDialogues(ref.Gold.Dialogues.Len())

	c, err := cache.New(cache.Config{
		Type:     appCfg.Cache.Type,
		Size:     appCfg.Cache.Size,
		TTL:      appCfg.Cache.TTL,
		RedisURL: appCfg.Cache.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating report cache: %w", err)
	}
	if mc, ok := c.(interface{ SetMetrics(cache.Metrics) }); ok {
		mc.SetMetrics(m)
	}

	b, err := bus.NewBus(appCfg.Bus, log)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("creating event bus: %w", err)
	}
	instrumented := bus.NewInstrumentedBus(b, m)

	evaluator, err := evaluation.NewEvaluator(ref, evaluation.Deps{
		Cache:   c,
		Bus:     instrumented,
		Metrics: m,
		Recent:  observability.NewService(log, appCfg.Observability.RecentEvaluations),
		Log:     log,
		Tracer:  observability.Tracer(),
	})
	if err != nil {
		_ = instrumented.Close()
		_ = c.Close()
		return nil, err
	}

	s, err := New(ConfigFrom(appCfg, version), Services{
		Evaluator: evaluator,
		Metrics:   m,
		Bus:       instrumented,
		Cache:     c,
	}, log)
	if err != nil {
		return nil, err
	}
	s.shutdownTracing = shutdownTracing
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.mu.Unlock()

	s.log.Info("Starting HTTP server", "addr", addr, "version", s.cfg.Version)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and closes its services.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return s.closeServices(ctx)
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}

	s.started = false
	err := s.closeServices(shutdownCtx)
	s.log.Info("Server stopped")
	return err
}

func (s *Server) closeServices(ctx context.Context) error {
	var errs []error
	if s.limiterCancel != nil {
		s.limiterCancel()
		s.limiterCancel = nil
	}
	if s.bus != nil {
		errs = append(errs, s.bus.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.shutdownTracing != nil {
		errs = append(errs, s.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}

// setupRoutes configures all HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	s.reportHandler.RegisterRoutes(mux)

	// Evaluation routes are CPU-bound over whole documents and rate limited.
	evalMux := http.NewServeMux()
	s.evalHandler.RegisterRoutes(evalMux)
	s.reportHandler.RegisterEvaluationRoutes(evalMux)
	var evalRoutes http.Handler = evalMux
	if s.cfg.RateLimit > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.limiterCancel = cancel
		limiter := middleware.NewRateLimiter(ctx, middleware.RateLimiterConfig{
			RequestsPerSecond: s.cfg.RateLimit,
			Burst:             s.cfg.RateBurst,
		})
		evalRoutes = limiter.Middleware(evalMux)
	}
	mux.Handle("/v1/evaluations", evalRoutes)
	mux.Handle("/v1/evaluations/", evalRoutes)

	if s.metrics != nil && s.cfg.MetricsPath != "" {
		mux.Handle("GET "+s.cfg.MetricsPath, s.metrics.Handler())
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = metrics.HTTPMiddleware(s.metrics, handler)
	}
	handler = middleware.CORS(handler, s.cfg.CORSOrigins)
	handler = middleware.Logging(handler, s.log)
	handler = middleware.Recovery(handler, s.log)
	handler = middleware.RequestID(handler)
	return handler
}

// Health reports whether the server is running.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
