// Package server hosts the HTTP API: operator routes, OAuth and the Cafe24 webhook.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/chosahoo/cafe24-cs-bot/internal/auth"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
	"github.com/chosahoo/cafe24-cs-bot/internal/ledger"
	"github.com/chosahoo/cafe24-cs-bot/internal/manual"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
	"github.com/chosahoo/cafe24-cs-bot/internal/orchestrator"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
	"github.com/chosahoo/cafe24-cs-bot/internal/webhook"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
	// RequestTimeout bounds each request. Answer generation runs inside
	// it, so it is longer than a plain API call needs.
	RequestTimeout time.Duration
}

// Handlers are the feature components whose routes the server mounts.
// A nil field leaves that feature unmounted.
type Handlers struct {
	Settings      *settings.Store
	Manuals       *manual.Store
	Logs          *ledger.Store
	Monitor       *ledger.MonitorStore
	Notifications *notifications.Store
	OAuth         *auth.Cafe24OAuth
	DefaultMall   string
	Orchestrator  *orchestrator.Service
	// Links signs notification links; nil leaves their targets unmounted.
	Links         *notifications.LinkSigner
	Webhook       *webhook.Handler
}

// Server is the bridge's HTTP server.
type Server struct {
	cfg        Config
	db         *db.DB
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server and mounts the given handlers.
func New(cfg Config, database *db.DB, h Handlers, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		db:     database,
		logger: logger.Named("server"),
	}

	s.router = s.buildRouter()
	s.mount(h)
	return s
}

// buildRouter creates and configures the chi router.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Cafe24-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)

	return r
}

func (s *Server) mount(h Handlers) {
	r := s.router
	if h.Settings != nil {
		settings.RegisterRoutes(r, h.Settings)
	}
	if h.Manuals != nil {
		manual.RegisterRoutes(r, h.Manuals)
	}
	if h.Logs != nil && h.Monitor != nil {
		ledger.RegisterRoutes(r, h.Logs, h.Monitor)
	}
	if h.Notifications != nil {
		notifications.RegisterRoutes(r, h.Notifications)
	}
	if h.OAuth != nil {
		auth.RegisterRoutes(r, h.OAuth, h.DefaultMall)
	}
	if h.Orchestrator != nil {
		orchestrator.RegisterRoutes(r, h.Orchestrator, h.Links)
	}
	if h.Webhook != nil {
		webhook.RegisterRoutes(r, h.Webhook)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.logger.Error("health check: database unreachable", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port. It returns nil after a
// graceful Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("csbot server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
