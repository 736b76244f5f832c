package advisory

import (
	"sync"
	"time"
)

const (
	DefaultSpacing     = 45 * time.Second
	DefaultHibernation = 300 * time.Second
)

// ThrottleState is the bookkeeping behind MayRequest.
type ThrottleState struct {
	HibernateUntil     time.Time `json:"hibernateUntil"`
	LastRequestAt      time.Time `json:"lastRequestAt"`
	LastServedBusIndex int       `json:"lastServedBusIndex"`
}

// Throttle decides when an automatic advisory call is allowed.
type Throttle struct {
	spacing     time.Duration
	hibernation time.Duration

	mu    sync.Mutex
	state ThrottleState
}

// NewThrottle creates a throttle. Zero durations fall back to the defaults.
func NewThrottle(spacing, hibernation time.Duration) *Throttle {
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	if hibernation <= 0 {
		hibernation = DefaultHibernation
	}
	return &Throttle{
		spacing:     spacing,
		hibernation: hibernation,
		state:       ThrottleState{LastServedBusIndex: -1},
	}
}

// MayRequest reports whether a call may go out now. Manual requests always may.
func (t *Throttle) MayRequest(now time.Time, manual bool, busIndex int) bool {
	if manual {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Before(t.state.HibernateUntil) {
		return false
	}
	if !t.state.LastRequestAt.IsZero() && now.Sub(t.state.LastRequestAt) < t.spacing {
		return false
	}
	return busIndex != t.state.LastServedBusIndex
}

// Record notes a completed call that started at now. A quota failure puts
// the throttle into hibernation.
func (t *Throttle) Record(now time.Time, busIndex int, quotaExhausted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.LastRequestAt = now
	t.state.LastServedBusIndex = busIndex
	if quotaExhausted {
		t.state.HibernateUntil = now.Add(t.hibernation)
	}
}

// Hibernating reports whether automatic calls are suspended after a quota error.
func (t *Throttle) Hibernating(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Before(t.state.HibernateUntil)
}

func (t *Throttle) State() ThrottleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
