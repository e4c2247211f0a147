// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contraverify/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	SaveAPIKey(ctx context.Context, value string) error
	LoadAPIKey(ctx context.Context) (string, bool, error)
	Start(ctx context.Context, in domain.Input) string
	CheckStatus(ctx context.Context, network, guid string) (string, error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc   Service
	board *Board
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service, board *Board) *Handler {
	return &Handler{svc: svc, board: board}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/apikey", h.handleGetAPIKey)
	r.Put("/apikey", h.handlePutAPIKey)
	r.Post("/verify", h.handleVerify)
	r.Get("/results", h.handleResults)
	r.Post("/check", h.handleCheck)
}

func (h *Handler) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	value, ok, err := h.svc.LoadAPIKey(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load API key")
		return
	}
	writeJSON(w, http.StatusOK, APIKeyResponse{APIKey: value, Set: ok})
}

func (h *Handler) handlePutAPIKey(w http.ResponseWriter, r *http.Request) {
	var req APIKeyRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.svc.SaveAPIKey(r.Context(), req.APIKey); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save API key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	// Blank addresses are reported on the results board like every other outcome
	id := h.svc.Start(r.Context(), domain.Input{
		Address:      req.Address,
		ContractName: req.ContractName,
	})
	writeJSON(w, http.StatusAccepted, VerifyResponse{AttemptID: id})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Snapshot())
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Network) == "" || strings.TrimSpace(req.GUID) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "network and guid are required")
		return
	}

	result, err := h.svc.CheckStatus(r.Context(), req.Network, req.GUID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPollLimit):
			writeError(w, http.StatusGatewayTimeout, "STILL_PENDING", err.Error())
		case errors.Is(err, domain.ErrTransport):
			writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "Status check timed out")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check verification status")
		}
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{Result: result})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
