package domain

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

// ErrMappingToEventMetadataFailed is returned when metadata deserialization fails.
var ErrMappingToEventMetadataFailed = errors.New("mapping to event metadata failed")

// ErrMappingFromEventMetadataFailed is returned when metadata serialization fails.
var ErrMappingFromEventMetadataFailed = errors.New("mapping from event metadata failed")

// EventIDString represents a unique event identifier.
type EventIDString = string

// CausationIDString represents the ID of the event that caused this event.
type CausationIDString = string

// CorrelationIDString represents the ID correlating all events of one originating request.
type CorrelationIDString = string

// EventMetadata carries the causality-tracking information stored alongside every event.
//
// CorrelationID links all events produced, directly or through choreography, by one
// originating request. CausationID names the event that triggered this one; it is
// empty for events produced by the first command of a request.
type EventMetadata struct {
	EventID       EventIDString       `json:"eventId"`
	CorrelationID CorrelationIDString `json:"correlationId"`
	CausationID   CausationIDString   `json:"causationId,omitempty"`
}

// BuildEventMetadata creates EventMetadata from id values.
func BuildEventMetadata(eventID EventIDString, correlationID CorrelationIDString, causationID CausationIDString) EventMetadata {
	return EventMetadata{
		EventID:       eventID,
		CorrelationID: correlationID,
		CausationID:   causationID,
	}
}

// ToJSON serializes the metadata for storage.
func (m EventMetadata) ToJSON() ([]byte, error) {
	metadataJSON, err := jsoniter.ConfigFastest.Marshal(m)
	if err != nil {
		return nil, errors.Join(ErrMappingFromEventMetadataFailed, err)
	}

	return metadataJSON, nil
}

// EventMetadataFromJSON deserializes stored metadata.
func EventMetadataFromJSON(metadataJSON []byte) (EventMetadata, error) {
	metadata := new(EventMetadata)
	if err := jsoniter.ConfigFastest.Unmarshal(metadataJSON, metadata); err != nil {
		return EventMetadata{}, errors.Join(ErrMappingToEventMetadataFailed, err)
	}

	return *metadata, nil
}

type correlationContextKey struct{}

type correlationValues struct {
	correlationID CorrelationIDString
	causationID   CausationIDString
}

// ContextWithCorrelation returns a context carrying the given correlation and causation ids.
//
// The session stamps them onto every event it appends. Choreography reactions re-seed
// the context with the triggering event's correlation id and event id before issuing
// follow-on commands, so a chain of events stays fully traceable.
func ContextWithCorrelation(ctx context.Context, correlationID CorrelationIDString, causationID CausationIDString) context.Context {
	return context.WithValue(ctx, correlationContextKey{}, correlationValues{
		correlationID: correlationID,
		causationID:   causationID,
	})
}

// CorrelationFrom extracts the correlation and causation ids carried by the context.
// Both are empty when the context carries none.
func CorrelationFrom(ctx context.Context) (CorrelationIDString, CausationIDString) {
	values, ok := ctx.Value(correlationContextKey{}).(correlationValues)
	if !ok {
		return "", ""
	}

	return values.correlationID, values.causationID
}
