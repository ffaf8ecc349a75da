package relay

import (
	"encoding/json"
	"fmt"
)

// Event names carried over the relay. The hub treats them identically; the
// names matter only to producers and subscribers.
const (
	EventChildLocationUpdate = "childLocationUpdate"
	EventSOSAlert            = "sosAlert"
)

// Event is the wire envelope. Data passes through the hub verbatim;
// payload validation is a subscriber responsibility.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEvent wraps a payload in an envelope.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return Event{Event: name, Data: data}, nil
}

// LocationUpdate is the childLocationUpdate payload.
type LocationUpdate struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	FamilyCode string  `json:"familyCode"`
	Timestamp  string  `json:"timestamp"`
}

// SOSAlert is the sosAlert payload.
type SOSAlert struct {
	Message    string      `json:"message"`
	Location   Coordinates `json:"location"`
	FamilyCode string      `json:"familyCode"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
