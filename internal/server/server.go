// Package server provides the HTTP server for the document store.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/config"
	apierrors "github.com/devrev/docstore/internal/errors"
	"github.com/devrev/docstore/internal/handler"
	"github.com/devrev/docstore/internal/health"
	"github.com/devrev/docstore/internal/metrics"
	"github.com/devrev/docstore/internal/middleware"
	"github.com/devrev/docstore/internal/ratelimit"
	"github.com/devrev/docstore/internal/service"
	"github.com/devrev/docstore/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	handlers      *handler.Handlers
	healthCheck   *health.HealthCheck
	errorHandler  *apierrors.Handler
	sourceLimiter *ratelimit.SourceLimiter
	metrics       *metrics.Metrics
	logger        *zap.Logger
	cfg           *config.Config
}

// NewServer creates a new HTTP server. The object store may be nil in
// read-only mode.
func NewServer(
	cfg *config.Config,
	documents *service.DocumentService,
	objects store.ObjectStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()
	errorHandler := apierrors.NewHandler(logger)
	handlers := handler.NewHandlers(documents, errorHandler, logger)
	healthCheck := health.NewHealthCheck(objects, m, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	// Setup middleware chain
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS([]string{"*"}),
		metrics.MetricsMiddleware(s.metrics),
	}

	// Apply middleware to router
	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// API v1 routes: throttle, then per-source rate limit, then tenant
	// guard, then dispatch. Health and metrics stay outside all three.
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.ContentType)

	if s.cfg.Throttle.Enabled {
		throttle := middleware.NewThrottle(
			s.cfg.Throttle.RequestsPerSecond,
			s.cfg.Throttle.BurstSize,
			s.errorHandler,
			s.logger,
		)
		v1.Use(throttle.Limit)
	}

	if s.cfg.RateLimit.Enabled {
		s.sourceLimiter = ratelimit.NewSourceLimiter(s.cfg.RateLimit.MaxRequests, s.cfg.RateLimit.Window, nil)
		rateLimit := middleware.NewSourceRateLimit(s.sourceLimiter, s.cfg.RateLimit.Window, s.errorHandler, s.metrics, s.logger)
		v1.Use(rateLimit.Limit)
	}

	guard := middleware.NewTenantGuard(s.cfg.ReadOnly(), s.errorHandler, s.logger)
	v1.Use(guard.Guard)

	// Document operations
	v1.HandleFunc("", s.handlers.GetDataset).Methods(http.MethodGet)
	v1.HandleFunc("/{collection}", s.handlers.ListRecords).Methods(http.MethodGet)
	v1.HandleFunc("/{collection}", s.handlers.CreateRecord).Methods(http.MethodPost)
	v1.HandleFunc("/{collection}/{id}", s.handlers.GetRecord).Methods(http.MethodGet)
	v1.HandleFunc("/{collection}/{id}", s.handlers.ReplaceRecord).Methods(http.MethodPut)
	v1.HandleFunc("/{collection}/{id}", s.handlers.PatchRecord).Methods(http.MethodPatch)
	v1.HandleFunc("/{collection}/{id}", s.handlers.DeleteRecord).Methods(http.MethodDelete)

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "endpoint not found", requestID)
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteError(w, http.StatusMethodNotAllowed, apierrors.ErrCodeMethodNotAllowed, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
		zap.String("mode", s.cfg.Store.Mode),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server and stops the
// background goroutines it owns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.healthCheck.Stop()
	if s.sourceLimiter != nil {
		s.sourceLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
