package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthHandler answers GET /health with process liveness and uptime.
type HealthHandler struct {
	started time.Time
}

// NewHealthHandler creates a health handler anchored at process start.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now()}
}

// healthBody mirrors the envelope but carries uptime alongside it.
type healthBody struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// Handle reports the service as healthy.
func (h *HealthHandler) Handle(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthBody{
		Success:   true,
		Message:   "Server is healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Seconds(),
	})
}

// NotFound is the JSON 404 fallback for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path))
}
