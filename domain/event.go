package domain

import (
	"time"
)

// EventTypeString is an alias type for event type identifiers.
type EventTypeString = string

// Events is a slice of Event instances.
type Events = []Event

// Event represents a business fact that has occurred in one of the bounded contexts.
//
// Events are immutable: once committed to a stream they are only ever read back
// and replayed. All state an aggregate holds must be derivable from its events.
type Event interface {
	// EventType returns the string identifier for this event type.
	EventType() string

	// HasOccurredAt returns when this event occurred.
	HasOccurredAt() time.Time

	// PayloadToJSON serializes the event payload for storage.
	PayloadToJSON() ([]byte, error)
}

// OccurredAtTS represents when an event occurred.
type OccurredAtTS = time.Time

// ToOccurredAt converts a time to OccurredAtTS with UTC normalization and microsecond precision.
// Storage engines persist timestamps at microsecond resolution, so events normalize
// up front to keep replayed state byte-for-byte identical to the state before the commit.
func ToOccurredAt(t time.Time) OccurredAtTS {
	return t.UTC().Truncate(time.Microsecond)
}
