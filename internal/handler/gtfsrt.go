package handler

import (
	"net/http"

	"google.golang.org/protobuf/proto"

	"arcticbus/internal/realtime"
)

// VehiclePositions handles GET /gtfs-rt/vehicle-positions.pb.
func (h *Handler) VehiclePositions(w http.ResponseWriter, r *http.Request) {
	feed := realtime.VehicleFeed(h.store.Snapshot(), h.topology, h.vehicleID)
	b, err := proto.Marshal(feed)
	if err != nil {
		h.logger.Error("marshaling vehicle feed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(b)
}
