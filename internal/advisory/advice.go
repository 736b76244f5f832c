package advisory

import (
	"fmt"
	"time"
)

// Urgency of an advisory.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is one of the known levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Payload is a rider-facing advisory.
type Payload struct {
	Message    string    `json:"message"`
	ETA        string    `json:"eta"`
	Urgency    Urgency   `json:"urgency"`
	IsFallback bool      `json:"isFallback"`
	Timestamp  time.Time `json:"timestamp"`
}

const minutesPerStop = 4

// LocalAdvice builds the deterministic advisory used whenever the remote
// backend can't be used.
func LocalAdvice(stopsAway int, userStopName string, now time.Time) Payload {
	msg := fmt.Sprintf("Local Dispatch: The bus is %d stops from you. Ensure you are visible at the curb.", stopsAway)
	if stopsAway == 0 {
		msg = fmt.Sprintf("The bus has arrived at %s! Please board quickly.", userStopName)
	}

	urgency := UrgencyLow
	switch {
	case stopsAway <= 1:
		urgency = UrgencyHigh
	case stopsAway <= 3:
		urgency = UrgencyMedium
	}

	return Payload{
		Message:    msg,
		ETA:        fmt.Sprintf("%d mins", stopsAway*minutesPerStop),
		Urgency:    urgency,
		IsFallback: true,
		Timestamp:  now,
	}
}
