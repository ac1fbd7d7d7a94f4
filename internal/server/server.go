// Package server wires the todo API: REST routes, the change feed,
// middleware and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/auth"
	"github.com/vyrodovalexey/restresource/internal/config"
	"github.com/vyrodovalexey/restresource/internal/handler"
	"github.com/vyrodovalexey/restresource/internal/middleware"
	"github.com/vyrodovalexey/restresource/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	wsHandler  *handler.WebSocketHandler
}

// New creates a new Server. A nil authenticator disables authentication.
func New(cfg *config.Config, logger *zap.Logger, todoStore store.Store, authenticator auth.Authenticator) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
	}

	if cfg.MetricsEnabled {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s.setupMiddleware(authenticator)
	s.setupRoutes(todoStore)
	s.setupHTTPServer()

	return s
}

func (s *Server) setupMiddleware(authenticator auth.Authenticator) {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		auth.APIKeyHeader,
		middleware.RequestIDHeader,
	}

	// First applied is outermost.
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.registry != nil {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics(middleware.NewHTTPMetrics(s.registry))))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders)))

	if authenticator != nil {
		s.logger.Info("authentication enabled", zap.String("method", string(authenticator.Method())))
		s.router.Use(mux.MiddlewareFunc(middleware.Auth(authenticator, s.logger)))
	}
}

func (s *Server) setupRoutes(todoStore store.Store) {
	s.wsHandler = handler.NewWebSocketHandler(s.logger)
	s.wsHandler.RegisterRoutes(s.router)

	restHandler := handler.NewRESTHandler(todoStore, s.wsHandler, s.logger)
	restHandler.RegisterRoutes(s.router)

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server",
		zap.String("address", ln.Addr().String()),
		zap.Bool("metrics_enabled", s.registry != nil),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve: %w", err)
	}

	return nil
}

// Shutdown closes the change feed, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.wsHandler.CloseAllConnections()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}
