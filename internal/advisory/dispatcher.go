package advisory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"arcticbus/internal/route"
)

const DefaultManualCooldown = 30 * time.Second

var (
	// ErrCooldown is returned by Manual while the previous manual request's countdown runs.
	ErrCooldown = errors.New("manual advisory cooling down")
	// ErrBusy is returned by Manual while another advisory call is in flight.
	ErrBusy = errors.New("advisory request in flight")
)

// Metrics receives dispatcher outcomes.
type Metrics interface {
	ObserveAdvisory(source Source, manual bool)
	ObserveThrottled()
	SetHibernating(on bool)
}

// Listener is notified of every new advisory.
type Listener func(ctx context.Context, p Payload)

// Dispatcher runs advisory requests through the throttle and the service and
// keeps the latest payload.
type Dispatcher struct {
	throttle *Throttle
	service  *Service
	topology *route.Topology
	cooldown time.Duration
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time

	inFlight atomic.Bool

	mu            sync.Mutex
	latest        *Payload
	cooldownUntil time.Time
	listeners     []Listener
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(throttle *Throttle, service *Service, topology *route.Topology, cooldown time.Duration, metrics Metrics, logger *slog.Logger) *Dispatcher {
	if cooldown <= 0 {
		cooldown = DefaultManualCooldown
	}
	return &Dispatcher{
		throttle: throttle,
		service:  service,
		topology: topology,
		cooldown: cooldown,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// OnAdvice registers fn to run after each new advisory.
func (d *Dispatcher) OnAdvice(fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Auto requests an advisory if the throttle allows it. It is a no-op while
// another request is in flight.
func (d *Dispatcher) Auto(ctx context.Context, bus, user int) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer d.inFlight.Store(false)

	now := d.now()
	if !d.throttle.MayRequest(now, false, bus) {
		if d.metrics != nil {
			d.metrics.ObserveThrottled()
		}
		return
	}
	if _, err := d.run(ctx, now, bus, user, false); err != nil {
		d.logger.Error("automatic advisory", "error", err)
	}
}

// Manual requests an advisory regardless of spacing, hibernation and bus
// movement, then starts the manual countdown.
func (d *Dispatcher) Manual(ctx context.Context, bus, user int) (Payload, error) {
	now := d.now()

	d.mu.Lock()
	if now.Before(d.cooldownUntil) {
		d.mu.Unlock()
		return Payload{}, ErrCooldown
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return Payload{}, ErrBusy
	}
	d.cooldownUntil = now.Add(d.cooldown)
	d.mu.Unlock()
	defer d.inFlight.Store(false)

	return d.run(ctx, now, bus, user, true)
}

// Latest returns the most recent advisory, if any.
func (d *Dispatcher) Latest() (Payload, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return Payload{}, false
	}
	return *d.latest, true
}

// CooldownRemaining is the time until Manual is accepted again.
func (d *Dispatcher) CooldownRemaining(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rem := d.cooldownUntil.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

func (d *Dispatcher) Hibernating(now time.Time) bool {
	return d.throttle.Hibernating(now)
}

func (d *Dispatcher) Busy() bool {
	return d.inFlight.Load()
}

func (d *Dispatcher) run(ctx context.Context, started time.Time, bus, user int, manual bool) (Payload, error) {
	busStop, err := d.topology.At(bus)
	if err != nil {
		return Payload{}, err
	}
	userStop, err := d.topology.At(user)
	if err != nil {
		return Payload{}, err
	}

	p, out := d.service.GetAdvice(ctx, busStop, userStop, d.topology.StopsAway(bus, user))
	d.throttle.Record(started, bus, out.QuotaExhausted)
	if d.metrics != nil {
		d.metrics.ObserveAdvisory(out.Source, manual)
		d.metrics.SetHibernating(d.throttle.Hibernating(d.now()))
	}
	d.logger.Info("advisory updated", "source", out.Source, "manual", manual, "urgency", p.Urgency, "bus_stop", bus, "user_stop", user)

	d.mu.Lock()
	d.latest = &p
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, p)
	}
	return p, nil
}
