package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrAllSourcesExhausted is matched by the error Fetch returns when every strategy failed.
var ErrAllSourcesExhausted = errors.New("all sources exhausted")

// AttemptError records why one strategy failed.
type AttemptError struct {
	Strategy string
	Err      error
}

func (e AttemptError) Error() string {
	return e.Strategy + ": " + e.Err.Error()
}

// ExhaustedError carries every per-strategy failure from one Fetch call.
type ExhaustedError struct {
	Attempts []AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("%s after %d attempts (%s)", ErrAllSourcesExhausted, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllSourcesExhausted
}

// Result is a decoded payload plus the path that produced it.
type Result struct {
	Payload  json.RawMessage
	Method   Method
	Strategy string
}

// Observer is told about every strategy attempt.
type Observer interface {
	ObserveAttempt(strategy string, ok bool, d time.Duration)
}

// Fetcher tries strategies strictly in order until one yields a payload.
type Fetcher struct {
	strategies []Strategy
	observer   Observer
	logger     *slog.Logger
}

// New creates a Fetcher. observer may be nil.
func New(strategies []Strategy, observer Observer, logger *slog.Logger) *Fetcher {
	return &Fetcher{strategies: strategies, observer: observer, logger: logger}
}

// Strategies returns the configured strategy names in order.
func (f *Fetcher) Strategies() []string {
	names := make([]string, len(f.strategies))
	for i, s := range f.strategies {
		names[i] = s.Name()
	}
	return names
}

// Fetch resolves resource through the first strategy that succeeds. There are
// no retries within a call; the caller's next cycle is the retry.
func (f *Fetcher) Fetch(ctx context.Context, resource string) (Result, error) {
	exhausted := &ExhaustedError{}
	for i, s := range f.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		start := time.Now()
		payload, err := s.Attempt(ctx, resource)
		if f.observer != nil {
			f.observer.ObserveAttempt(s.Name(), err == nil, time.Since(start))
		}
		if err == nil {
			if i > 0 {
				f.logger.Info("fetched via fallback", "strategy", s.Name(), "position", i)
			}
			return Result{Payload: payload, Method: s.Method(), Strategy: s.Name()}, nil
		}

		f.logger.Warn("fetch strategy failed, trying next", "strategy", s.Name(), "error", err)
		exhausted.Attempts = append(exhausted.Attempts, AttemptError{Strategy: s.Name(), Err: err})
	}
	return Result{}, exhausted
}

// RelayConfig describes one relay endpoint.
type RelayConfig struct {
	Name     string
	Prefix   string
	Envelope bool
}

// DefaultRelays are public pass-through services used when direct access is blocked.
func DefaultRelays() []RelayConfig {
	return []RelayConfig{
		{Name: "corsproxy", Prefix: "https://corsproxy.io/?"},
		{Name: "allorigins", Prefix: "https://api.allorigins.win/get?url=", Envelope: true},
		{Name: "codetabs", Prefix: "https://api.codetabs.com/v1/proxy?quest="},
	}
}

// BuildStrategies returns the direct strategy followed by one strategy per relay.
func BuildStrategies(client *http.Client, relays []RelayConfig) []Strategy {
	out := []Strategy{Direct(client)}
	for _, r := range relays {
		if r.Envelope {
			out = append(out, EnvelopeRelay(r.Name, r.Prefix, client))
		} else {
			out = append(out, Relay(r.Name, r.Prefix, client))
		}
	}
	return out
}

// SelectRelays picks relays from DefaultRelays by name, in the order given.
func SelectRelays(names []string) ([]RelayConfig, error) {
	known := make(map[string]RelayConfig)
	for _, r := range DefaultRelays() {
		known[r.Name] = r
	}
	out := make([]RelayConfig, 0, len(names))
	for _, n := range names {
		r, ok := known[n]
		if !ok {
			return nil, fmt.Errorf("unknown relay %q", n)
		}
		out = append(out, r)
	}
	return out, nil
}
