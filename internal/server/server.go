// Package server exposes the dashboard read API over the ledger. Both
// endpoints are cached so dashboard polling never contends with the
// agent's ledger writes.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/store"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

const (
	defaultInvocationLimit = 30
	maxInvocationLimit     = 200
)

type Server struct {
	cfg        *store.Config
	router     *mux.Router
	httpServer *http.Server

	perf *performanceCache
	inv  *invocationCache
}

func New(cfg *store.Config, ledger interfaces.Ledger) *Server {
	s := &Server{
		cfg:  cfg,
		perf: newPerformanceCache(ledger),
		inv:  newInvocationCache(ledger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/performance", s.handlePerformance).Methods("GET")
	s.router.HandleFunc("/invocations", s.handleInvocations).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      cors(s.router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info(context.Background(), "Dashboard API listening", "addr", s.cfg.Server.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type performanceResponse struct {
	Snapshots []types.SnapshotView `json:"snapshots"`
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	series, err := s.perf.get(r.Context())
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to load portfolio series", err)
		writeError(w, http.StatusInternalServerError, "failed to load portfolio series")
		return
	}
	if series == nil {
		series = []types.SnapshotView{}
	}
	writeJSON(w, http.StatusOK, performanceResponse{Snapshots: series})
}

type invocationsResponse struct {
	Invocations []types.InvocationView `json:"invocations"`
	Stale       bool                   `json:"stale"`
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	limit := defaultInvocationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxInvocationLimit {
		limit = maxInvocationLimit
	}

	views, stale, err := s.inv.get(r.Context(), limit)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to load invocations", err)
		writeError(w, http.StatusInternalServerError, "failed to load invocations")
		return
	}
	writeJSON(w, http.StatusOK, invocationsResponse{Invocations: views, Stale: stale})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug(r.Context(), "Request handled",
			"method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
