package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ledgerindex/internal/ledger"
	"ledgerindex/internal/models"
	"ledgerindex/internal/stats"
	"ledgerindex/internal/storage"
)

// Ledger is the part of the sync engine the API reads
type Ledger interface {
	State() ledger.State
	AccountState(ctx context.Context, address string) (*models.AccountState, error)
}

// Server represents the HTTP API server
// Provides endpoints for Prometheus metrics, health checks, and read-only queries
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	repository storage.Repository
	stats      *stats.Aggregator
	ledger     Ledger
	port       string
}

// NewServer creates a new API server instance
// Handlers only read from the repository; the sync engine is the sole writer
func NewServer(port string, repository storage.Repository, aggregator *stats.Aggregator, l Ledger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:        mux,
		repository: repository,
		stats:      aggregator,
		ledger:     l,
		port:       port,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// Handler exposes the routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Ledger endpoints
	s.mux.HandleFunc("/version/", s.getOnly(s.handleGetVersion))
	s.mux.HandleFunc("/account/", s.getOnly(s.handleAccountRoutes))
	s.mux.HandleFunc("/stats", s.getOnly(s.handleStats))
	s.mux.HandleFunc("/search", s.getOnly(s.handleSearch))
}

func (s *Server) getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// handleAccountRoutes routes account sub-endpoints
func (s *Server) handleAccountRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/account/")
	parts := strings.Split(path, "/")

	// GET /account/{acct}
	if len(parts) == 1 {
		s.handleListAccount(w, r, parts[0])
		return
	}

	// GET /account/{acct}/state
	if len(parts) == 2 && parts[1] == "state" {
		s.handleAccountState(w, r, parts[0])
		return
	}

	s.sendError(w, "Endpoint not found", http.StatusNotFound)
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/version/{v}", "/account/{acct}", "/stats"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
