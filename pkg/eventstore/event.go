package eventstore

import "fmt"

// Event is an immutable typed, timestamped value.
// Events are partitioned by exact equality on Type and ordered by Timestamp.
type Event struct {
	eventType string
	timestamp int64
}

// NewEvent creates a new Event with the given type label and timestamp.
// The timestamp is an opaque ordering key; it is not validated against wall-clock time.
func NewEvent(eventType string, timestamp int64) *Event {
	return &Event{
		eventType: eventType,
		timestamp: timestamp,
	}
}

// Type returns the type label this event is partitioned by.
func (e *Event) Type() string {
	return e.eventType
}

// Timestamp returns the ordering key of this event.
func (e *Event) Timestamp() int64 {
	return e.timestamp
}

func (e *Event) String() string {
	return fmt.Sprintf("%s@%d", e.eventType, e.timestamp)
}
