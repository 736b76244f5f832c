package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEState streams state snapshots via Server-Sent Events.
func (h *Handler) SSEState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Send initial state immediately
	var last []byte
	last = h.sendStateEvent(w, flusher, last)

	ticker := time.NewTicker(h.sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			last = h.sendStateEvent(w, flusher, last)
		case <-ctx.Done():
			return
		}
	}
}

// sendStateEvent writes a "state" event unless nothing changed since prev,
// in which case a comment keeps the connection alive.
func (h *Handler) sendStateEvent(w http.ResponseWriter, flusher http.Flusher, prev []byte) []byte {
	v, err := h.stateView()
	if err != nil {
		h.logger.Error("building SSE state", "error", err)
		return prev
	}
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding SSE state", "error", err)
		return prev
	}

	if bytes.Equal(b, prev) {
		fmt.Fprint(w, ": keepalive\n\n")
	} else {
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", b)
	}
	flusher.Flush()
	return b
}
