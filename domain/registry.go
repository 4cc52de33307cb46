package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateEventType is returned when an event type is registered twice.
var ErrDuplicateEventType = errors.New("event type is already registered")

// ErrUnknownEventType is returned when no unmarshal function is registered for an event type.
//
// Replay paths treat this as a no-op (forward compatibility with events written by
// newer code), while publish-side callers may treat it as a wiring defect.
var ErrUnknownEventType = errors.New("unknown event type")

// UnmarshalEventFunc deserializes a stored payload into a concrete domain event.
type UnmarshalEventFunc func(payload []byte) (Event, error)

// Registry maps event type identifiers to their unmarshal functions.
//
// It is an explicitly owned codec: constructed once at wiring time, populated with
// every event type a process knows about, and injected into the session. Dispatch
// is resolved at registration time; nothing is reflected over at runtime.
type Registry struct {
	unmarshalers map[EventTypeString]UnmarshalEventFunc
}

// NewRegistry creates an empty event type registry.
func NewRegistry() *Registry {
	return &Registry{
		unmarshalers: make(map[EventTypeString]UnmarshalEventFunc),
	}
}

// Register binds an event type identifier to its unmarshal function.
// Registering the same event type twice is a wiring defect and fails.
func (r *Registry) Register(eventType EventTypeString, unmarshal UnmarshalEventFunc) error {
	if _, exists := r.unmarshalers[eventType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEventType, eventType)
	}

	r.unmarshalers[eventType] = unmarshal

	return nil
}

// Knows reports whether the registry can unmarshal the given event type.
func (r *Registry) Knows(eventType EventTypeString) bool {
	_, exists := r.unmarshalers[eventType]
	return exists
}

// Unmarshal deserializes a stored payload using the function registered for its type.
// Returns ErrUnknownEventType for types the registry does not know.
func (r *Registry) Unmarshal(eventType EventTypeString, payload []byte) (Event, error) {
	unmarshal, exists := r.unmarshalers[eventType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	return unmarshal(payload)
}
