package realtime

import (
	"sync"
	"time"

	"arcticbus/internal/fetch"
)

// Status is the telemetry link state.
type Status string

const (
	StatusSearching Status = "searching"
	StatusActive    Status = "active"
	StatusOffline   Status = "offline"
)

// RouteState is where the bus and the rider are on the loop.
type RouteState struct {
	BusStopIndex  int       `json:"busStopIndex"`
	UserStopIndex int       `json:"userStopIndex"`
	LastUpdated   time.Time `json:"lastUpdated"`
	IsMoving      bool      `json:"isMoving"` // bus changed stop on the last good cycle

	// Last raw fix behind BusStopIndex.
	HasFix bool    `json:"hasFix"`
	BusLat float64 `json:"busLat,omitempty"`
	BusLng float64 `json:"busLng,omitempty"`
}

// Health describes the most recent poll cycle. No history is kept.
type Health struct {
	Status    Status       `json:"status"`
	Method    fetch.Method `json:"method"`
	Strategy  string       `json:"strategy,omitempty"`
	LastError string       `json:"lastError,omitempty"`
}

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	Route  RouteState `json:"route"`
	Health Health     `json:"health"`
}

// Store holds route state and connection health in a thread-safe manner.
type Store struct {
	mu     sync.RWMutex
	route  RouteState
	health Health
}

// NewStore creates a store with the rider at userStop and the link searching.
func NewStore(userStop int) *Store {
	return &Store{
		route:  RouteState{UserStopIndex: userStop},
		health: Health{Status: StatusSearching, Method: fetch.MethodNone},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Route: s.route, Health: s.health}
}

// SetUserStop moves the rider. The caller guarantees i is a valid index.
func (s *Store) SetUserStop(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route.UserStopIndex = i
}

// recordFix stores a successful cycle and reports whether the bus changed stop.
func (s *Store) recordFix(busStop int, lat, lng float64, at time.Time, res fetch.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := s.route.HasFix && s.route.BusStopIndex != busStop
	s.route.BusStopIndex = busStop
	s.route.LastUpdated = at
	s.route.IsMoving = moved
	s.route.HasFix = true
	s.route.BusLat = lat
	s.route.BusLng = lng

	s.health = Health{Status: StatusActive, Method: res.Method, Strategy: res.Strategy}
	return moved
}

// recordFailure marks the link offline. Route state is left as it was.
func (s *Store) recordFailure(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = Health{Status: StatusOffline, Method: fetch.MethodNone, LastError: msg}
}
