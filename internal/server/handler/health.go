package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
)

// DatasetStatus reports the state of the in-memory dataset.
type DatasetStatus interface {
	LoadedAt() time.Time
	Version() string
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	dataset DatasetStatus
	clock   clock.Clock
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(dataset DatasetStatus, clk clock.Clock, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{dataset: dataset, clock: clk, logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the server is
// alive, plus when the dataset was last loaded.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	}
	if loaded := h.dataset.LoadedAt(); !loaded.IsZero() {
		resp["dataset_loaded_at"] = loaded.UTC().Format(time.RFC3339)
		resp["dataset_version"] = h.dataset.Version()
	} else {
		resp["status"] = "loading"
	}
	writeJSON(w, http.StatusOK, resp)
}
