package eventlog

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrInvalidPayloadJSON is returned when an event payload is not valid JSON.
	ErrInvalidPayloadJSON = errors.New("payload json is not valid")

	// ErrInvalidMetadataJSON is returned when event metadata is not valid JSON.
	ErrInvalidMetadataJSON = errors.New("metadata json is not valid")
)

// StoredEvents is an alias type for a slice of StoredEvent.
type StoredEvents = []StoredEvent

// StoredEvent is the DTO the event log appends and queries back.
//
// It is built on scalars to stay completely agnostic of how domain events are
// modeled in client code. While its properties are exported, it should only be
// constructed with the supplied factory methods:
//   - BuildStoredEvent
//   - BuildStoredEventWithEmptyMetadata
type StoredEvent struct {
	EventType    string
	OccurredAt   time.Time
	PayloadJSON  []byte
	MetadataJSON []byte
}

// BuildStoredEvent is a factory method for StoredEvent.
//
// It populates the StoredEvent with the given scalar input.
// Returns an error if payloadJSON or metadataJSON are not valid JSON.
func BuildStoredEvent(eventType string, occurredAt time.Time, payloadJSON []byte, metadataJSON []byte) (StoredEvent, error) {
	if !json.Valid(payloadJSON) {
		return StoredEvent{}, ErrInvalidPayloadJSON
	}

	if !json.Valid(metadataJSON) {
		return StoredEvent{}, ErrInvalidMetadataJSON
	}

	return StoredEvent{
		EventType:    eventType,
		OccurredAt:   occurredAt,
		PayloadJSON:  payloadJSON,
		MetadataJSON: metadataJSON,
	}, nil
}

// BuildStoredEventWithEmptyMetadata is a factory method for StoredEvent.
//
// It populates the StoredEvent with the given scalar input and creates valid empty JSON for MetadataJSON.
// Returns an error if payloadJSON is not valid JSON.
func BuildStoredEventWithEmptyMetadata(eventType string, occurredAt time.Time, payloadJSON []byte) (StoredEvent, error) {
	return BuildStoredEvent(eventType, occurredAt, payloadJSON, []byte("{}"))
}
