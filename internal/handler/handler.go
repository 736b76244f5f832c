package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"arcticbus/internal/advisory"
	"arcticbus/internal/realtime"
	"arcticbus/internal/route"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	topology    *route.Topology
	store       *realtime.Store
	poller      *realtime.Poller
	advice      *advisory.Dispatcher
	vehicleID   string
	sseInterval time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Handler.
func New(topology *route.Topology, store *realtime.Store, poller *realtime.Poller, advice *advisory.Dispatcher, vehicleID string, sseInterval time.Duration, logger *slog.Logger) *Handler {
	if sseInterval <= 0 {
		sseInterval = 5 * time.Second
	}
	return &Handler{
		topology:    topology,
		store:       store,
		poller:      poller,
		advice:      advice,
		vehicleID:   vehicleID,
		sseInterval: sseInterval,
		logger:      logger,
		now:         time.Now,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
