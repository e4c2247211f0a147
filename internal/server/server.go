// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/contraverify/internal/auth"
	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/middleware/logging"
	"github.com/pendergraft/contraverify/internal/middleware/ratelimit"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
	"github.com/pendergraft/contraverify/internal/storage"
	verificationDomain "github.com/pendergraft/contraverify/internal/verification/domain"
	verificationTransport "github.com/pendergraft/contraverify/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	board           *verificationTransport.Board
	verificationSvc verificationTransport.Service
}

// New creates a new server. host is the bridge to the IDE and api the verification
// service client.
func New(cfg *config.Config, store storage.Store, host verificationDomain.Bridge, api verificationDomain.VerificationAPI, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
		board:  verificationTransport.NewBoard(),
	}

	v := cfg.Verification
	verifyImpl := verificationDomain.NewService(host, store, api, s.board, verificationDomain.Options{
		Endpoints: verificationDomain.Endpoints{
			Main:     v.MainURL,
			Template: v.URLTemplate,
		},
		PollInterval:     time.Duration(v.PollIntervalMS) * time.Millisecond,
		PollMaxAttempts:  v.PollMaxAttempts,
		StatusResetDelay: time.Duration(v.StatusResetMS) * time.Millisecond,
		WatchStatus:      v.WatchStatus,
	}, logger)

	// Wrap verification service with logging middleware
	s.verificationSvc = verificationDomain.LoggingMiddleware(logger)(verifyImpl)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Real IP first so rate limiting and logging see the client address
	s.router.Use(middleware.RealIP)
	s.router.Use(MaxBodySize(int64(s.cfg.Security.MaxBodySizeMB) << 20))
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
	}

	// CORS, the results page is usually opened from the IDE's origin
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Handle("/metrics", metrics.Handler())

	verificationHandler := verificationTransport.NewHandler(s.verificationSvc, s.board)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.cfg.Security.AuthToken, writeError))
		verificationHandler.RegisterRoutes(r)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the settings store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	_, err := s.store.Get(ctx, verificationDomain.APIKeyStorageKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
