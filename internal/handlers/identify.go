// Package handlers exposes the HTTP surface: POST /identify, GET /health,
// and the JSON 404 fallback.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/service"
)

// response is the JSON envelope every endpoint answers with.
type response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

// IdentifyHandler handles POST /identify.
type IdentifyHandler struct {
	resolver *service.Resolver
	log      zerolog.Logger
}

// NewIdentifyHandler creates the identify handler around a resolver.
func NewIdentifyHandler(resolver *service.Resolver, log zerolog.Logger) *IdentifyHandler {
	return &IdentifyHandler{resolver: resolver, log: log}
}

// Handle decodes the request, runs the resolver, and maps its errors onto
// HTTP status codes: invalid input is a client error, everything else is a
// server error carrying the failure message.
func (h *IdentifyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req models.IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn().Err(err).Msg("rejected malformed identify request")
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	identity, err := h.resolver.Resolve(r.Context(), req.EmailValue(), req.PhoneValue())
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Either email or phoneNumber must be provided")
			return
		}
		h.log.Error().Err(err).Msg("identify request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: identity})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Error: &errorBody{Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
