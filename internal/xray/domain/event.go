package domain

import (
	"fmt"
	"strings"
	"time"
)

// Event is one captured analytics beacon. Origin is the canonical host the
// beacon was observed on; Payload carries the raw provider payload for
// display, which the capture layer treats as opaque.
type Event struct {
	Provider   string    // analytics vendor identifier, e.g. "ga4"
	Name       string    // event name as reported by the provider
	Origin     string    // canonical host the event fired on
	Payload    string    // raw payload, opaque to the capture layer
	ObservedAt time.Time // capture timestamp
}

// NewEvent constructs an Event and validates its required fields.
func NewEvent(provider, name, origin, payload string, observedAt time.Time) (Event, error) {
	e := Event{
		Provider:   strings.TrimSpace(provider),
		Name:       strings.TrimSpace(name),
		Origin:     strings.TrimSpace(origin),
		Payload:    payload,
		ObservedAt: observedAt,
	}
	if e.Origin == "" {
		return Event{}, fmt.Errorf("event origin must not be empty")
	}
	if e.Name == "" {
		return Event{}, fmt.Errorf("event name must not be empty")
	}
	if e.ObservedAt.IsZero() {
		return Event{}, fmt.Errorf("event observedAt must be set")
	}
	return e, nil
}
