package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"arcticbus/internal/fetch"
	"arcticbus/internal/route"
)

// PositionFetcher resolves a resource URL to a JSON payload.
type PositionFetcher interface {
	Fetch(ctx context.Context, resource string) (fetch.Result, error)
}

// Metrics receives poll outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	ObservePoll(ok bool)
	SetStatus(status Status)
	SetBusStop(index int)
}

// UpdateFunc is called after every successful cycle.
type UpdateFunc func(ctx context.Context, snap Snapshot, moved bool)

// Poller periodically refreshes the bus position.
type Poller struct {
	feedURL  string
	interval time.Duration
	fetcher  PositionFetcher
	topology *route.Topology
	store    *Store
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time

	reconnect chan struct{}

	mu        sync.Mutex
	listeners []UpdateFunc
}

// NewPoller creates a poller for feedURL. metrics may be nil.
func NewPoller(feedURL string, interval time.Duration, fetcher PositionFetcher, topology *route.Topology, store *Store, metrics Metrics, logger *slog.Logger) *Poller {
	return &Poller{
		feedURL:   feedURL,
		interval:  interval,
		fetcher:   fetcher,
		topology:  topology,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		reconnect: make(chan struct{}, 1),
	}
}

// OnUpdate registers fn to run after each successful cycle.
func (p *Poller) OnUpdate(fn UpdateFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Start polls immediately and then on every tick. Blocks until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Poll(ctx)
		case <-p.reconnect:
			p.logger.Info("forced reconnect")
			p.Poll(ctx)
		case <-ctx.Done():
			p.logger.Info("position poller stopped")
			return
		}
	}
}

// Reconnect asks the running poller for an extra cycle now. The tick
// schedule is unaffected. Requests made while one is pending are merged.
func (p *Poller) Reconnect() {
	select {
	case p.reconnect <- struct{}{}:
	default:
	}
}

// Poll runs a single fetch-parse-match cycle. Acquisition errors end here.
func (p *Poller) Poll(ctx context.Context) {
	now := p.now()

	res, err := p.fetcher.Fetch(ctx, p.resource(now))
	if err != nil {
		p.fail(err)
		return
	}

	pos, err := ParsePosition(res.Payload)
	if err != nil {
		p.fail(err)
		return
	}

	idx := p.topology.Nearest(pos.Lat, pos.Lng)
	moved := p.store.recordFix(idx, pos.Lat, pos.Lng, now, res)
	if p.metrics != nil {
		p.metrics.ObservePoll(true)
		p.metrics.SetStatus(StatusActive)
		p.metrics.SetBusStop(idx)
	}
	p.logger.Debug("position updated", "stop_index", idx, "method", res.Method, "strategy", res.Strategy, "moved", moved)

	snap := p.store.Snapshot()
	p.mu.Lock()
	listeners := make([]UpdateFunc, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, snap, moved)
	}
}

// Locate sets the rider's stop to the one nearest (lat, lng).
func (p *Poller) Locate(lat, lng float64) (int, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, fmt.Errorf("coordinate (%g, %g) out of range", lat, lng)
	}
	idx := p.topology.Nearest(lat, lng)
	if _, err := p.topology.At(idx); err != nil {
		return 0, err
	}
	p.store.SetUserStop(idx)
	return idx, nil
}

func (p *Poller) fail(err error) {
	p.store.recordFailure(err.Error())
	if p.metrics != nil {
		p.metrics.ObservePoll(false)
		p.metrics.SetStatus(StatusOffline)
	}
	p.logger.Warn("position poll failed", "error", err)
}

// resource appends a cache-busting parameter so intermediaries can't serve stale fixes.
func (p *Poller) resource(now time.Time) string {
	u, err := url.Parse(p.feedURL)
	if err != nil {
		return p.feedURL
	}
	q := u.Query()
	q.Set("cb", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
