// Package publish dispatches committed event envelopes to registered reactions.
//
// The reaction set is closed at wiring time: every reaction declares which event
// type triggers it and which event types its follow-on command can emit, and
// registration rejects any reaction that would close a cycle in the resulting
// trigger graph. That makes unbounded choreography loops a wiring-time defect
// instead of a production incident.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
)

const (
	logMsgReactionFailed    = "reaction failed, event dispatch continues"
	logMsgEnvelopePublished = "envelope published"
	logAttrEventType        = "event_type"
	logAttrReaction         = "reaction"
	logAttrReactionCount    = "reaction_count"
	logAttrError            = "error"
	logAttrCorrelationID    = "correlation_id"

	reactionFailuresMetric   = "publisher_reaction_failures_total"
	envelopesPublishedMetric = "publisher_envelopes_total"
	labelEventType           = "event_type"
	labelReaction            = "reaction"
)

var (
	// ErrNilReaction is returned when a nil reaction is registered.
	ErrNilReaction = errors.New("reaction must not be nil")

	// ErrEmptyTriggerEventType is returned when a reaction declares no trigger event type.
	ErrEmptyTriggerEventType = errors.New("reaction trigger event type must not be empty")

	// ErrReactionCycle is returned when registering a reaction would allow an event
	// chain to reach its own trigger again.
	ErrReactionCycle = errors.New("reaction registration would create a cycle")
)

// Reaction handles one committed event type and may issue a follow-on command.
//
// EventType names the single event type that triggers the reaction. Emits lists
// every event type the follow-on command can commit; the publisher uses it to
// prove the choreography graph acyclic at registration time. React must be
// idempotent with respect to redelivery of the same envelope.
type Reaction interface {
	EventType() domain.EventTypeString
	Emits() []domain.EventTypeString
	React(ctx context.Context, envelope domain.Envelope) error
}

// Publisher routes committed envelopes to the reactions registered for their
// event type, in registration order, on the caller's goroutine.
//
// A failing reaction is logged and skipped; it never blocks other reactions or
// the command that produced the envelope. Register is not safe for concurrent
// use with Publish; wire everything before serving traffic.
type Publisher struct {
	reactions map[domain.EventTypeString][]Reaction
	emits     map[domain.EventTypeString][]domain.EventTypeString
	logger    eventlog.ContextualLogger
	metrics   eventlog.MetricsCollector
}

// Option defines a functional option for configuring the Publisher.
type Option func(*Publisher)

// WithContextualLogger sets the logger for dispatch and failure logging.
func WithContextualLogger(logger eventlog.ContextualLogger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector for dispatch counters.
func WithMetrics(metrics eventlog.MetricsCollector) Option {
	return func(p *Publisher) {
		p.metrics = metrics
	}
}

// NewPublisher creates a Publisher with an empty reaction registry.
func NewPublisher(options ...Option) *Publisher {
	p := &Publisher{
		reactions: make(map[domain.EventTypeString][]Reaction),
		emits:     make(map[domain.EventTypeString][]domain.EventTypeString),
	}

	for _, option := range options {
		option(p)
	}

	return p
}

// Register adds a reaction to the registry after proving that the trigger graph
// stays acyclic: no sequence of reactions may lead from any event type the
// reaction emits back to the event type that triggers it.
func (p *Publisher) Register(reaction Reaction) error {
	if reaction == nil {
		return ErrNilReaction
	}

	trigger := reaction.EventType()
	if trigger == "" {
		return ErrEmptyTriggerEventType
	}

	for _, emitted := range reaction.Emits() {
		if p.reaches(emitted, trigger, make(map[domain.EventTypeString]bool)) {
			return fmt.Errorf("%w: %s reacting to %s", ErrReactionCycle, emitted, trigger)
		}
	}

	p.reactions[trigger] = append(p.reactions[trigger], reaction)
	p.emits[trigger] = append(p.emits[trigger], reaction.Emits()...)

	return nil
}

// Publish dispatches each envelope to the reactions registered for its event
// type, sequentially and in registration order. Reaction errors are logged and
// swallowed; Publish itself never fails.
func (p *Publisher) Publish(ctx context.Context, envelopes domain.Envelopes) {
	for _, envelope := range envelopes {
		p.publishOne(ctx, envelope)
	}
}

func (p *Publisher) publishOne(ctx context.Context, envelope domain.Envelope) {
	eventType := envelope.Event.EventType()
	registered := p.reactions[eventType]

	if p.logger != nil {
		p.logger.DebugContext(ctx, logMsgEnvelopePublished,
			logAttrEventType, eventType,
			logAttrReactionCount, len(registered),
			logAttrCorrelationID, envelope.Metadata.CorrelationID)
	}

	if p.metrics != nil {
		p.metrics.IncrementCounter(envelopesPublishedMetric, map[string]string{labelEventType: eventType})
	}

	for _, reaction := range registered {
		if reactErr := reaction.React(ctx, envelope); reactErr != nil {
			if p.logger != nil {
				p.logger.ErrorContext(ctx, logMsgReactionFailed,
					logAttrEventType, eventType,
					logAttrReaction, fmt.Sprintf("%T", reaction),
					logAttrError, reactErr.Error(),
					logAttrCorrelationID, envelope.Metadata.CorrelationID)
			}

			if p.metrics != nil {
				p.metrics.IncrementCounter(reactionFailuresMetric, map[string]string{
					labelEventType: eventType,
					labelReaction:  fmt.Sprintf("%T", reaction),
				})
			}
		}
	}
}

// reaches walks the trigger graph: true when an event of type "from" can,
// through any chain of registered reactions, cause an event of type "to".
func (p *Publisher) reaches(from, to domain.EventTypeString, visited map[domain.EventTypeString]bool) bool {
	if from == to {
		return true
	}

	if visited[from] {
		return false
	}
	visited[from] = true

	for _, next := range p.emits[from] {
		if p.reaches(next, to, visited) {
			return true
		}
	}

	return false
}
