// Package analytics records product events. Tracking is strictly
// best-effort: failures are logged and counted, never surfaced, and a full
// queue drops events rather than blocking the send path.
package analytics

import "time"

// Event is one product analytics event.
type Event struct {
	UserID string         `json:"user_id"`
	Type   string         `json:"event_type"`
	Props  map[string]any `json:"event_properties,omitempty"`
	// Time is the event time in epoch milliseconds.
	Time int64 `json:"time"`
}

// NewEvent stamps an event with the current time.
func NewEvent(userID, eventType string, props map[string]any) Event {
	return Event{UserID: userID, Type: eventType, Props: props, Time: time.Now().UnixMilli()}
}

// Tracker accepts events. Track must never block the caller for long and
// must never return an error; delivery is fire-and-forget.
type Tracker interface {
	Track(e Event)
	Close() error
}

// Noop discards every event. Used when analytics is disabled.
type Noop struct{}

func (Noop) Track(Event) {}

func (Noop) Close() error { return nil }
