// Package web serves the import API over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kafkasder-git/starter-function-sub002/internal/config"
	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/web/middleware"
)

// defaultKeepAlive is the interval of SSE comment lines on idle streams.
const defaultKeepAlive = 15 * time.Second

// Pinger checks database reachability. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the import service.
type Server struct {
	service   *core.Service
	cfg       *config.Config
	db        Pinger
	router    *chi.Mux
	server    *http.Server
	keepAlive time.Duration
}

// NewServer creates a Server. db may be nil, in which case /healthz skips
// the database check.
func NewServer(service *core.Service, cfg *config.Config, db Pinger) *Server {
	s := &Server{
		service:   service,
		cfg:       cfg,
		db:        db,
		router:    chi.NewRouter(),
		keepAlive: defaultKeepAlive,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes. Streaming and waiting routes are
// kept out of the request timeout.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			if d := s.cfg.Server.RequestTimeout; d > 0 {
				r.Use(chimw.Timeout(d))
			}

			r.Get("/targets", s.handleListTargets)
			r.Get("/template/{target}", s.handleTemplate)

			upload := r.With()
			if n := s.cfg.Import.UploadsPerMinute; n > 0 {
				upload = r.With(newRateLimiter(n, time.Minute).middleware)
			}
			upload.Post("/import/{target}", s.handleImport)
			r.Post("/import/{target}/cancel", s.handleCancel)
			r.Get("/import/{target}/errors.csv", s.handleErrorsCSV)
			r.Get("/import/{target}/history", s.handleHistory)
			r.Delete("/import/{target}", s.handleClear)
		})

		r.Get("/import/{target}/progress", s.handleProgress)
		r.Get("/import/{target}/result", s.handleResult)
	})
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
