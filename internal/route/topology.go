package route

import (
	"errors"
	"fmt"

	"arcticbus/internal/geo"
)

// ErrIndexOutOfRange is returned when a stop index falls outside the route.
var ErrIndexOutOfRange = errors.New("stop index out of range")

// Stop is a named, geolocated point on the route.
type Stop struct {
	ID          int     `json:"id" yaml:"id" validate:"gt=0"`
	Name        string  `json:"name" yaml:"name" validate:"required"`
	Tag         string  `json:"tag" yaml:"tag"`
	Description string  `json:"description" yaml:"description"`
	X           float64 `json:"x" yaml:"x"` // display coordinates for the route map
	Y           float64 `json:"y" yaml:"y"`
	Lat         float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng         float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Topology is an immutable, ordered loop of stops. Sequence order is the
// direction of travel and index arithmetic wraps modulo Count.
type Topology struct {
	name   string
	stops  []Stop
	points []geo.Point
}

// New builds a Topology from an ordered stop list.
func New(name string, stops []Stop) (*Topology, error) {
	if len(stops) == 0 {
		return nil, errors.New("route has no stops")
	}
	seen := make(map[int]bool, len(stops))
	points := make([]geo.Point, len(stops))
	for i, s := range stops {
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate stop id %d", s.ID)
		}
		seen[s.ID] = true
		points[i] = geo.Point{Lat: s.Lat, Lng: s.Lng}
	}
	own := make([]Stop, len(stops))
	copy(own, stops)
	return &Topology{name: name, stops: own, points: points}, nil
}

// Name returns the route's display name.
func (t *Topology) Name() string {
	return t.name
}

// Stops returns a copy of the ordered stop list.
func (t *Topology) Stops() []Stop {
	out := make([]Stop, len(t.stops))
	copy(out, t.stops)
	return out
}

// Count returns the number of stops.
func (t *Topology) Count() int {
	return len(t.stops)
}

// At returns the stop at index i.
func (t *Topology) At(i int) (Stop, error) {
	if i < 0 || i >= len(t.stops) {
		return Stop{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(t.stops))
	}
	return t.stops[i], nil
}

// Valid reports whether i is a position on the route.
func (t *Topology) Valid(i int) bool {
	return i >= 0 && i < len(t.stops)
}

// Wrap maps any integer onto [0, Count).
func (t *Topology) Wrap(i int) int {
	n := len(t.stops)
	return ((i % n) + n) % n
}

// Nearest returns the index of the stop closest to (lat, lng).
func (t *Topology) Nearest(lat, lng float64) int {
	return geo.Nearest(t.points, lat, lng)
}

// StopsAway is the forward distance in stops from bus to user around the loop.
// Zero means the bus is at the user's stop.
func (t *Topology) StopsAway(bus, user int) int {
	return t.Wrap(user - bus)
}

// InTransit reports whether stop i lies strictly between the bus and the
// user's stop in the direction of travel.
func (t *Topology) InTransit(i, bus, user int) bool {
	away := t.StopsAway(bus, user)
	ahead := t.StopsAway(bus, i)
	return ahead > 0 && ahead < away
}

// Between lists the stops strictly between bus and user, in travel order.
func (t *Topology) Between(bus, user int) []int {
	away := t.StopsAway(bus, user)
	if away < 2 {
		return nil
	}
	out := make([]int, 0, away-1)
	for k := 1; k < away; k++ {
		out = append(out, t.Wrap(bus+k))
	}
	return out
}
