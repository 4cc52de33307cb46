package domain

// Envelopes is a slice of Envelope instances.
type Envelopes = []Envelope

// Envelope combines a committed domain event with its stored metadata.
// Envelopes are what the publisher dispatches to reactions and projections.
type Envelope struct {
	Event    Event
	Metadata EventMetadata
}

// BuildEnvelope creates a new Envelope from a domain event and its metadata.
func BuildEnvelope(event Event, metadata EventMetadata) Envelope {
	return Envelope{
		Event:    event,
		Metadata: metadata,
	}
}
