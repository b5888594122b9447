package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/tally/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *TallyServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/facts", s.handleAppendFact)
	mux.HandleFunc("GET /v1/facts", s.handleListFacts)
	mux.HandleFunc("GET /v1/rollups/daily", s.handleDailyRange)
	mux.HandleFunc("GET /v1/rollups/daily/{date}", s.handleDailyRollup)
	mux.HandleFunc("GET /v1/rollups/items/{id}", s.handleItemRollup)
	mux.HandleFunc("GET /v1/rollups/customers/{id}", s.handleCustomerRollup)
	mux.HandleFunc("DELETE /v1/rollups/{family}/{key}", s.handleResetRollup)
	mux.HandleFunc("GET /v1/audit", s.handleListAudit)
	mux.HandleFunc("GET /v1/partitions", s.handleListPartitions)
	mux.HandleFunc("POST /v1/partitions/ensure", s.handleEnsurePartitions)
	mux.HandleFunc("POST /v1/items", s.handleCreateItem)
	mux.HandleFunc("GET /v1/items/{id}", s.handleGetItem)
	mux.HandleFunc("POST /v1/customers", s.handleCreateCustomer)
	mux.HandleFunc("GET /v1/customers/{id}", s.handleGetCustomer)
	mux.HandleFunc("PATCH /v1/customers/{id}", s.handleUpdateCustomer)
	mux.HandleFunc("GET /v1/customers/lookup", s.handleLookupCustomer)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *TallyServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain error types onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var cv *model.ConstraintViolation
	if errors.As(err, &cv) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": cv.Errors,
		})
		return
	}
	var pbe *model.PartitionBoundaryError
	if errors.As(err, &pbe) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": pbe.Error(),
			"start": pbe.Start,
			"end":   pbe.End,
		})
		return
	}
	var conflict *model.ConcurrencyConflict
	if errors.As(err, &conflict) {
		writeError(w, http.StatusServiceUnavailable, "write contention, retry")
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
