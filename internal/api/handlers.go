package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledgerindex/internal/ledger"
	"ledgerindex/internal/models"
	"ledgerindex/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleIndex returns basic indexer information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "ledgerindex",
		"version":     "1.0.0",
		"description": "Local index of a remote transaction ledger",
		"endpoints": map[string]string{
			"GET /":                     "This page - Service information",
			"GET /health":               "Health check endpoint",
			"GET /metrics":              "Prometheus metrics for monitoring",
			"GET /version/{v}":          "Get one transaction by ledger version",
			"GET /account/{acct}":       "List transactions sent or received by an account, newest first (supports ?page=)",
			"GET /account/{acct}/state": "Get an account's balance and counters from the remote ledger",
			"GET /stats":                "All-time, 24h and 1h ledger statistics",
			"GET /search?q={term}":      "Redirect to the account or version page matching term",
		},
	}

	s.sendJSON(w, info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.repository.Ping(r.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	health := map[string]interface{}{
		"status":       status,
		"timestamp":    time.Now().UTC(),
		"service":      "ledgerindex",
		"engine_state": s.ledger.State(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// handleGetVersion returns one transaction
// GET /version/{v}
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/version/")
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.sendError(w, "Version must be a non-negative integer", http.StatusBadRequest)
		return
	}

	tx, err := s.repository.GetByVersion(r.Context(), version)
	if errors.Is(err, storage.ErrNotFound) {
		s.sendError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to get transaction", "version", version, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, BuildTransactionResponse(tx))
}

// handleListAccount lists an account's transactions, newest first
// GET /account/{acct}?page=0
func (s *Server) handleListAccount(w http.ResponseWriter, r *http.Request, raw string) {
	account, ok := NormalizeAccount(raw)
	if !ok {
		s.sendError(w, "Account must be 64 hex characters", http.StatusBadRequest)
		return
	}
	page := storage.ParsePage(r.URL.Query().Get("page"))

	txs, err := s.repository.ListByAccount(r.Context(), account, page)
	if err != nil {
		slog.Error("Failed to list account transactions", "account", account, "page", page, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := models.AccountTransactionsResponse{
		Account:      account,
		Page:         page,
		PageSize:     storage.PageSize,
		Transactions: make([]models.TransactionResponse, 0, len(txs)),
	}
	for i := range txs {
		response.Transactions = append(response.Transactions, BuildTransactionResponse(&txs[i]))
	}

	s.sendJSON(w, response)
}

// handleAccountState fetches an account's state from the remote ledger
// GET /account/{acct}/state
func (s *Server) handleAccountState(w http.ResponseWriter, r *http.Request, raw string) {
	account, ok := NormalizeAccount(raw)
	if !ok {
		s.sendError(w, "Account must be 64 hex characters", http.StatusBadRequest)
		return
	}

	state, err := s.ledger.AccountState(r.Context(), account)
	switch {
	case errors.Is(err, ledger.ErrNotConnected):
		s.sendError(w, "Ledger connection not ready", http.StatusServiceUnavailable)
		return
	case err != nil:
		slog.Error("Failed to get account state", "account", account, "error", err)
		s.sendError(w, "Ledger unavailable", http.StatusBadGateway)
		return
	}

	s.sendJSON(w, BuildAccountStateResponse(state))
}

// handleStats returns the windowed statistics
// GET /stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	results, err := s.stats.Overview(r.Context())
	if err != nil {
		slog.Error("Failed to calculate stats", "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, BuildStatsResponse(results, time.Now()))
}

// handleSearch redirects an account id or a version number to its page
// GET /search?q={term}
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		term = strings.TrimSpace(r.URL.Query().Get("acct"))
	}

	if account, ok := NormalizeAccount(term); ok {
		http.Redirect(w, r, "/account/"+account, http.StatusFound)
		return
	}
	if version, err := strconv.ParseUint(term, 10, 64); err == nil {
		http.Redirect(w, r, "/version/"+strconv.FormatUint(version, 10), http.StatusFound)
		return
	}

	s.sendError(w, "Search term must be an account id or a version number", http.StatusBadRequest)
}

// sendJSON sends a 200 JSON response
func (s *Server) sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
