package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"arcticbus/internal/advisory"
	"arcticbus/internal/geo"
	"arcticbus/internal/realtime"
	"arcticbus/internal/route"
)

type stopsResponse struct {
	Name  string       `json:"name"`
	Stops []route.Stop `json:"stops"`
}

// Stops handles GET /api/stops.
func (h *Handler) Stops(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, stopsResponse{Name: h.topology.Name(), Stops: h.topology.Stops()})
}

// StateView is the rider-facing view of the tracker.
type StateView struct {
	Route       realtime.RouteState `json:"route"`
	Health      realtime.Health     `json:"health"`
	BusStop     *route.Stop         `json:"busStop,omitempty"`
	UserStop    route.Stop          `json:"userStop"`
	StopsAway   *int                `json:"stopsAway"` // null until the link is active
	InTransit   []int               `json:"inTransit"`
	Advisory    *advisory.Payload   `json:"advisory,omitempty"`
	Hibernating bool                `json:"hibernating"`
	Busy        bool                `json:"advisoryBusy"`
	Cooldown    int                 `json:"manualCooldownSeconds"`

	// Straight-line distance from the last fix to the rider's stop.
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

func (h *Handler) stateView() (StateView, error) {
	snap := h.store.Snapshot()
	now := h.now()

	user, err := h.topology.At(snap.Route.UserStopIndex)
	if err != nil {
		return StateView{}, err
	}
	v := StateView{
		Route:       snap.Route,
		Health:      snap.Health,
		UserStop:    user,
		InTransit:   []int{},
		Hibernating: h.advice.Hibernating(now),
		Busy:        h.advice.Busy(),
		Cooldown:    int(math.Ceil(h.advice.CooldownRemaining(now).Seconds())),
	}
	if snap.Route.HasFix {
		bus, err := h.topology.At(snap.Route.BusStopIndex)
		if err != nil {
			return StateView{}, err
		}
		v.BusStop = &bus
		km := geo.MetersToKilometers(geo.Haversine(snap.Route.BusLat, snap.Route.BusLng, user.Lat, user.Lng))
		v.DistanceKm = &km
	}
	if snap.Health.Status == realtime.StatusActive {
		n := h.topology.StopsAway(snap.Route.BusStopIndex, snap.Route.UserStopIndex)
		v.StopsAway = &n
		if between := h.topology.Between(snap.Route.BusStopIndex, snap.Route.UserStopIndex); between != nil {
			v.InTransit = between
		}
	}
	if p, ok := h.advice.Latest(); ok {
		v.Advisory = &p
	}
	return v, nil
}

// State handles GET /api/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	v, err := h.stateView()
	if err != nil {
		h.logger.Error("building state", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

type locateRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type locateResponse struct {
	UserStopIndex int        `json:"userStopIndex"`
	Stop          route.Stop `json:"stop"`
}

// Locate handles POST /api/locate with {"lat": .., "lng": ..}.
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		h.writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	idx, err := h.poller.Locate(*req.Lat, *req.Lng)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stop, err := h.topology.At(idx)
	if err != nil {
		h.logger.Error("locate", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("user stop set", "stop_index", idx, "stop", stop.Name)
	h.writeJSON(w, http.StatusOK, locateResponse{UserStopIndex: idx, Stop: stop})
}

// Reconnect handles POST /api/reconnect.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	h.poller.Reconnect()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconnecting"})
}

// Advisory handles POST /api/advisory, the manual refresh.
func (h *Handler) Advisory(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	if snap.Health.Status != realtime.StatusActive {
		h.writeError(w, http.StatusServiceUnavailable, "telemetry is not active")
		return
	}

	p, err := h.advice.Manual(r.Context(), snap.Route.BusStopIndex, snap.Route.UserStopIndex)
	switch {
	case errors.Is(err, advisory.ErrCooldown):
		secs := int(math.Ceil(h.advice.CooldownRemaining(h.now()).Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, advisory.ErrBusy):
		h.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("manual advisory", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	default:
		h.writeJSON(w, http.StatusOK, p)
	}
}

// Healthz handles GET /healthz. The process is healthy even when the feed is offline.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"link":   string(h.store.Snapshot().Health.Status),
	})
}
