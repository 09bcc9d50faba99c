package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/threadbench/internal/engine"
	"github.com/seantiz/threadbench/internal/executor"
	"github.com/seantiz/threadbench/internal/store"
)

const (
	shutdownTimeout       = 10 * time.Second
	readHeaderTimeout     = 10 * time.Second
	writeTimeout          = 60 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router         *chi.Mux
	store          store.Store
	registry       *executor.Registry
	engine         *engine.Engine
	logger         *slog.Logger
	addr           string
	requestTimeout time.Duration
}

// Option customizes a Server.
type Option func(*Server)

// WithRequestTimeout bounds how long a work request may run before its
// context is cancelled.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, s store.Store, reg *executor.Registry, eng *engine.Engine, logger *slog.Logger, opts ...Option) *Server {
	srv := &Server{
		router:         chi.NewRouter(),
		store:          s,
		registry:       reg,
		engine:         eng,
		logger:         logger,
		addr:           addr,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(callerMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/executors", s.handleListExecutors)
		r.Get("/stats", s.handleGetStats)
		r.Get("/samples", s.handleListSamples)
		r.Get("/results/stream", s.handleStreamResults)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))
			r.Get("/{mode}", s.handleWork)
		})
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// Result streams are ended when shutdown begins so that they do not hold the
// server open.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	httpServer.RegisterOnShutdown(s.engine.Broker().Close)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// callerMiddleware names the serving goroutine after the request ID so that
// sync mode and the health endpoint can report who ran them.
func callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := "http"
		if id := middleware.GetReqID(r.Context()); id != "" {
			name = "http-" + id
		}
		next.ServeHTTP(w, r.WithContext(engine.WithCaller(r.Context(), name)))
	})
}
