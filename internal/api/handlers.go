package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/terra-clan/sqlgym/internal/catalog"
	"github.com/terra-clan/sqlgym/internal/sandbox"
	"github.com/terra-clan/sqlgym/internal/solving"
	"github.com/terra-clan/sqlgym/internal/storage"
)

// Response is the standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an error in the API response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes a successful JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := Response{Success: false, Error: &APIError{Code: code, Message: message}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondDomainError maps service errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	var queryErr *sandbox.QueryError
	var validationErr *catalog.ValidationError

	switch {
	case errors.Is(err, catalog.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "task_not_found", "task not found")
	case errors.Is(err, solving.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, sandbox.ErrSandboxNotFound):
		respondError(w, http.StatusNotFound, "sandbox_not_found", "sandbox database not found")
	case errors.Is(err, solving.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, solving.ErrSessionFinished):
		respondError(w, http.StatusForbidden, "session_finished", "session is already finished")
	case errors.As(err, &queryErr):
		respondError(w, http.StatusBadRequest, "query_failed", queryErr.Error())
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
	case errors.Is(err, storage.ErrDuplicateUsername):
		respondError(w, http.StatusBadRequest, "duplicate_username", "username is already taken")
	default:
		slog.Error("unhandled error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports whether the backing store is reachable
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "database is not reachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
