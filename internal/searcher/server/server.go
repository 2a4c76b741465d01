// Package server assembles the search service's HTTP routes and middleware
// and runs the listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/oscara1796/vecsearch/internal/analytics"
	"github.com/oscara1796/vecsearch/internal/searcher/handler"
	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/health"
	"github.com/oscara1796/vecsearch/pkg/logger"
	"github.com/oscara1796/vecsearch/pkg/metrics"
	"github.com/oscara1796/vecsearch/pkg/middleware"
)

// Routes collects what the router mounts. Analytics, Metrics and Limiter
// may be nil; an empty CORSOrigins disables CORS headers.
type Routes struct {
	Search         *handler.Handler
	Analytics      *analytics.Handler
	Health         *health.Checker
	Metrics        *metrics.Metrics
	Limiter        *middleware.Limiter
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter builds the chi router. Health and metrics endpoints bypass rate
// limiting and the request timeout.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	if rt.Metrics != nil {
		r.Use(middleware.Metrics(rt.Metrics))
	}

	r.Get("/health/live", rt.Health.LiveHandler())
	r.Get("/health/ready", rt.Health.ReadyHandler())
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if len(rt.CORSOrigins) > 0 {
			r.Use(middleware.CORS(rt.CORSOrigins, 10*time.Minute))
		}
		if rt.Limiter != nil {
			r.Use(middleware.RateLimit(rt.Limiter, rt.Metrics))
		}
		r.Use(chimw.Compress(5, "application/json"))
		r.Use(middleware.Timeout(rt.RequestTimeout))

		r.Get("/search", rt.Search.Search)
		r.Post("/search", rt.Search.SearchConcordance)
		r.Get("/index/stats", rt.Search.IndexStats)
		r.Post("/index/reload", rt.Search.Reload)
		r.Get("/cache/stats", rt.Search.CacheStats)
		r.Post("/cache/invalidate", rt.Search.CacheInvalidate)
		if rt.Analytics != nil {
			r.Get("/analytics", rt.Analytics.Stats)
		}
	})
	return r
}

type Server struct {
	http     *http.Server
	shutdown time.Duration
	logger   *slog.Logger
}

func New(cfg config.ServerConfig, h http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdown: cfg.ShutdownTimeout,
		logger:   logger.WithComponent("http-server"),
	}
}

func (s *Server) Addr() string { return s.http.Addr }

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("search service listening", "addr", l.Addr().String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured port and blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.http.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown drains in-flight requests, bounded by the configured shutdown
// timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	s.logger.Info("shutting down search service")
	return s.http.Shutdown(ctx)
}
