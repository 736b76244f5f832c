package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTelemetry is returned when a payload has no usable position.
var ErrMalformedTelemetry = errors.New("malformed telemetry")

// Position is a raw vehicle fix.
type Position struct {
	Lat float64
	Lng float64
}

// ParsePosition accepts a single object or an array whose first element is
// the vehicle, and requires numeric lat and lng fields.
func ParsePosition(raw json.RawMessage) (Position, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrMalformedTelemetry, err)
	}

	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return Position{}, fmt.Errorf("%w: empty vehicle list", ErrMalformedTelemetry)
		}
		v = arr[0]
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return Position{}, fmt.Errorf("%w: expected an object, got %T", ErrMalformedTelemetry, v)
	}
	lat, ok := obj["lat"].(float64)
	if !ok {
		return Position{}, fmt.Errorf("%w: lat is missing or not a number", ErrMalformedTelemetry)
	}
	lng, ok := obj["lng"].(float64)
	if !ok {
		return Position{}, fmt.Errorf("%w: lng is missing or not a number", ErrMalformedTelemetry)
	}
	return Position{Lat: lat, Lng: lng}, nil
}
