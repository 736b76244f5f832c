package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"arcticbus/internal/advisory"
	"arcticbus/internal/realtime"
	"arcticbus/internal/route"
)

const (
	KindPosition = "position"
	KindAdvisory = "advisory"
)

// Event is the envelope sent to the broker.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// PositionData describes the bus after a successful poll.
type PositionData struct {
	Route        string  `json:"route"`
	BusStopIndex int     `json:"busStopIndex"`
	StopID       int     `json:"stopId"`
	StopName     string  `json:"stopName"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Moving       bool    `json:"moving"`
	Method       string  `json:"method"`
}

func newEvent(kind string, at time.Time, data any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Timestamp: at.UTC(), Data: data}
}

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Metrics counts publish outcomes.
type Metrics interface {
	ObservePublish(kind string, ok bool)
}

// Forwarder turns poller and dispatcher notifications into events.
type Forwarder struct {
	pub      Publisher
	topology *route.Topology
	metrics  Metrics
	logger   *slog.Logger
}

func NewForwarder(pub Publisher, topology *route.Topology, metrics Metrics, logger *slog.Logger) *Forwarder {
	return &Forwarder{pub: pub, topology: topology, metrics: metrics, logger: logger}
}

// Position has the realtime.UpdateFunc signature.
func (f *Forwarder) Position(ctx context.Context, snap realtime.Snapshot, moved bool) {
	r := snap.Route
	data := PositionData{
		Route:        f.topology.Name(),
		BusStopIndex: r.BusStopIndex,
		Lat:          r.BusLat,
		Lng:          r.BusLng,
		Moving:       moved,
		Method:       string(snap.Health.Method),
	}
	if stop, err := f.topology.At(r.BusStopIndex); err == nil {
		data.StopID = stop.ID
		data.StopName = stop.Name
	}
	f.send(ctx, newEvent(KindPosition, r.LastUpdated, data))
}

// Advisory has the advisory.Listener signature.
func (f *Forwarder) Advisory(ctx context.Context, p advisory.Payload) {
	f.send(ctx, newEvent(KindAdvisory, p.Timestamp, p))
}

func (f *Forwarder) send(ctx context.Context, ev Event) {
	err := f.pub.Publish(ctx, ev)
	if f.metrics != nil {
		f.metrics.ObservePublish(ev.Kind, err == nil)
	}
	if err != nil {
		f.logger.Warn("publishing event", "kind", ev.Kind, "id", ev.ID, "error", err)
		return
	}
	f.logger.Debug("event published", "kind", ev.Kind, "id", ev.ID)
}
