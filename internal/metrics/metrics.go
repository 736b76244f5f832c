package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arcticbus/internal/advisory"
	"arcticbus/internal/realtime"
)

// Collector holds the tracker's Prometheus metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	FetchAttempts *prometheus.CounterVec // strategy, outcome
	FetchDuration *prometheus.HistogramVec
	PollCycles    *prometheus.CounterVec // outcome
	LinkStatus    *prometheus.GaugeVec   // status, one-hot
	BusStop       prometheus.Gauge

	AdvisoryRequests *prometheus.CounterVec // source, trigger
	AdvisoryDenied   prometheus.Counter
	Hibernating      prometheus.Gauge

	EventsPublished *prometheus.CounterVec // kind, outcome
}

var statuses = []realtime.Status{realtime.StatusSearching, realtime.StatusActive, realtime.StatusOffline}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcticbus_fetch_attempts_total",
			Help: "Telemetry fetch attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arcticbus_fetch_duration_seconds",
			Help:    "Duration of a single strategy attempt.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"strategy"}),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcticbus_poll_cycles_total",
			Help: "Position poll cycles by outcome.",
		}, []string{"outcome"}),
		LinkStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arcticbus_link_status",
			Help: "1 for the current telemetry link status, 0 for the others.",
		}, []string{"status"}),
		BusStop: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arcticbus_bus_stop_index",
			Help: "Index of the stop nearest the bus.",
		}),
		AdvisoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcticbus_advisory_requests_total",
			Help: "Advisories produced by source (remote|local) and trigger (auto|manual).",
		}, []string{"source", "trigger"}),
		AdvisoryDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arcticbus_advisory_throttled_total",
			Help: "Automatic advisory requests denied by the throttle.",
		}),
		Hibernating: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arcticbus_advisory_hibernating",
			Help: "1 while automatic advisories are suspended after a quota error.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arcticbus_events_published_total",
			Help: "Events published to the broker by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		c.FetchAttempts, c.FetchDuration, c.PollCycles, c.LinkStatus, c.BusStop,
		c.AdvisoryRequests, c.AdvisoryDenied, c.Hibernating,
		c.EventsPublished,
	)
	c.SetStatus(realtime.StatusSearching)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveAttempt implements fetch.Observer.
func (c *Collector) ObserveAttempt(strategy string, ok bool, d time.Duration) {
	c.FetchAttempts.WithLabelValues(strategy, outcome(ok)).Inc()
	c.FetchDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (c *Collector) ObservePoll(ok bool) {
	c.PollCycles.WithLabelValues(outcome(ok)).Inc()
}

func (c *Collector) SetStatus(status realtime.Status) {
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		c.LinkStatus.WithLabelValues(string(s)).Set(v)
	}
}

func (c *Collector) SetBusStop(index int) {
	c.BusStop.Set(float64(index))
}

func (c *Collector) ObserveAdvisory(source advisory.Source, manual bool) {
	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	c.AdvisoryRequests.WithLabelValues(string(source), trigger).Inc()
}

func (c *Collector) ObserveThrottled() {
	c.AdvisoryDenied.Inc()
}

func (c *Collector) SetHibernating(on bool) {
	if on {
		c.Hibernating.Set(1)
	} else {
		c.Hibernating.Set(0)
	}
}

func (c *Collector) ObservePublish(kind string, ok bool) {
	c.EventsPublished.WithLabelValues(kind, outcome(ok)).Inc()
}
