package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"arcticbus/internal/route"
)

// SystemInstruction primes the backend as the route's dispatcher.
const SystemInstruction = `You are the Iqaluit Transit AI Dispatcher.
Your job is to provide concise, friendly, and context-aware advice to transit users in Iqaluit, Nunavut.
You will be given the current bus position and the user's nearest stop.
Consider that Iqaluit is in the Arctic - it's often extremely cold, windy, and snowy.
Provide an "Advice" summary including:
1. A status message.
2. An estimated time until arrival (ETA) based on stop distance (roughly 3-5 mins per stop).
3. Urgency level: low, medium, or high.

Output strictly in JSON format with properties: "message", "eta", and "urgency".`

var errInvalidAdvice = errors.New("invalid advice")

// Source says where a payload came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Outcome describes how GetAdvice produced its payload.
type Outcome struct {
	Source         Source
	QuotaExhausted bool
	Err            error // backend or validation failure, nil when remote succeeded
}

// Service produces advisories, falling back to LocalAdvice on any failure.
type Service struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a service. A nil backend always uses the local rule.
func NewService(backend Backend, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{backend: backend, timeout: timeout, logger: logger, now: time.Now}
}

// Prompt is the context sent with each request.
func Prompt(bus, user route.Stop, stopsAway int) string {
	return fmt.Sprintf("Current bus: %s. User stop: %s. Distance: %d stops. Arctic weather is active.", bus.Name, user.Name, stopsAway)
}

// GetAdvice always returns a usable payload.
func (s *Service) GetAdvice(ctx context.Context, bus, user route.Stop, stopsAway int) (Payload, Outcome) {
	if s.backend == nil {
		return LocalAdvice(stopsAway, user.Name, s.now()), Outcome{Source: SourceLocal}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	p, err := s.remote(ctx, Prompt(bus, user, stopsAway))
	if err == nil {
		return p, Outcome{Source: SourceRemote}
	}

	quota := IsQuotaExhausted(err)
	if quota {
		s.logger.Warn("advisory quota exhausted, using local advice", "error", err)
	} else {
		s.logger.Warn("advisory backend failed, using local advice", "error", err)
	}
	return LocalAdvice(stopsAway, user.Name, s.now()), Outcome{Source: SourceLocal, QuotaExhausted: quota, Err: err}
}

func (s *Service) remote(ctx context.Context, prompt string) (Payload, error) {
	raw, err := s.backend.Generate(ctx, prompt, SystemInstruction)
	if err != nil {
		return Payload{}, err
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", errInvalidAdvice, err)
	}
	p.Message = strings.TrimSpace(p.Message)
	p.ETA = strings.TrimSpace(p.ETA)
	p.Urgency = Urgency(strings.ToLower(strings.TrimSpace(string(p.Urgency))))
	switch {
	case p.Message == "":
		return Payload{}, fmt.Errorf("%w: empty message", errInvalidAdvice)
	case p.ETA == "":
		return Payload{}, fmt.Errorf("%w: empty eta", errInvalidAdvice)
	case !p.Urgency.Valid():
		return Payload{}, fmt.Errorf("%w: unknown urgency %q", errInvalidAdvice, p.Urgency)
	}
	p.IsFallback = false
	p.Timestamp = s.now()
	return p, nil
}
