package publish

import (
	"context"

	"github.com/flowline/eventflow-go/domain"
)

// Sink adapts a plain envelope consumer, typically a read model projection, into
// a Reaction that emits nothing. Sinks are leaves of the trigger graph and can
// never participate in a cycle.
type Sink struct {
	eventType domain.EventTypeString
	apply     func(envelope domain.Envelope)
}

// NewSink creates a Sink applying envelopes of the given event type.
func NewSink(eventType domain.EventTypeString, apply func(envelope domain.Envelope)) *Sink {
	return &Sink{
		eventType: eventType,
		apply:     apply,
	}
}

// EventType returns the event type this sink consumes.
func (s *Sink) EventType() domain.EventTypeString {
	return s.eventType
}

// Emits returns nil: sinks never cause follow-on events.
func (s *Sink) Emits() []domain.EventTypeString {
	return nil
}

// React applies the envelope to the consumer.
func (s *Sink) React(_ context.Context, envelope domain.Envelope) error {
	s.apply(envelope)
	return nil
}

var _ Reaction = (*Sink)(nil)
