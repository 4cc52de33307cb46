// Package session loads aggregate roots from the event log by replay and commits
// their uncommitted events back, stamping causality metadata on the way out.
//
// The session is the only component that touches both the domain layer and the
// eventlog layer: it converts between domain events and stored events through the
// registry, and it carries the optimistic concurrency token (the stream version
// the root was loaded at) across a load/command/save cycle.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/flowline/eventflow-go/aggregate"
	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
)

const (
	logMsgUnknownEventTypeSkipped = "unknown event type skipped during replay"
	logMsgEventsCommitted         = "events committed"
	logAttrStreamID               = "stream_id"
	logAttrEventType              = "event_type"
	logAttrEventCount             = "event_count"
	logAttrStreamVersion          = "stream_version"
	logAttrCorrelationID          = "correlation_id"
)

var (
	// ErrNotFound is returned by Load when the stream has no events.
	ErrNotFound = errors.New("stream not found")

	// ErrNilEventLog is returned by New when the event log is nil.
	ErrNilEventLog = errors.New("event log must not be nil")

	// ErrNilRegistry is returned by New when the event registry is nil.
	ErrNilRegistry = errors.New("event registry must not be nil")

	// ErrMappingEventForStorageFailed is returned when an uncommitted event cannot
	// be converted to its stored representation.
	ErrMappingEventForStorageFailed = errors.New("mapping event for storage failed")
)

// IDGeneratorFunc mints unique ids for event and correlation identifiers.
type IDGeneratorFunc func() string

// Session mediates between aggregate roots and the event log.
// A single Session is safe for concurrent use as long as its log is.
type Session struct {
	log      eventlog.Log
	registry *domain.Registry
	logger   eventlog.ContextualLogger
	newID    IDGeneratorFunc
}

// Option defines a functional option for configuring the Session.
type Option func(*Session) error

// WithContextualLogger sets the logger used for replay and commit logging.
func WithContextualLogger(logger eventlog.ContextualLogger) Option {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

// WithIDGenerator overrides the id generator used for event and correlation ids.
// The default mints UUID v4 values.
func WithIDGenerator(newID IDGeneratorFunc) Option {
	return func(s *Session) error {
		s.newID = newID
		return nil
	}
}

// New creates a Session over the given event log and registry.
func New(log eventlog.Log, registry *domain.Registry, options ...Option) (*Session, error) {
	if log == nil {
		return nil, ErrNilEventLog
	}

	if registry == nil {
		return nil, ErrNilRegistry
	}

	s := &Session{
		log:      log,
		registry: registry,
		newID:    uuid.NewString,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// LoadOrCreate replays the stream into a fresh root of type T.
//
// A stream with no events yields a zero-valued root at version zero; the first
// save then appends at expected version zero, so two concurrent creators of the
// same stream race on the version check and exactly one wins.
func LoadOrCreate[U any, T interface {
	*U
	aggregate.Root
}](ctx context.Context, s *Session, streamID eventlog.StreamIDString) (T, error) {

	root := T(new(U))

	if err := s.replayInto(ctx, streamID, root); err != nil {
		return nil, err
	}

	return root, nil
}

// Load replays the stream into a fresh root of type T and fails with ErrNotFound
// when the stream has no events.
func Load[U any, T interface {
	*U
	aggregate.Root
}](ctx context.Context, s *Session, streamID eventlog.StreamIDString) (T, error) {

	root, err := LoadOrCreate[U, T](ctx, s, streamID)
	if err != nil {
		return nil, err
	}

	if root.Version() == 0 {
		return nil, ErrNotFound
	}

	return root, nil
}

// Save appends the root's uncommitted events to the stream at the version the root
// was loaded at, stamping each event with metadata: a fresh event id, the
// correlation id carried by the context (or a fresh one when the context carries
// none), and the causation id carried by the context.
//
// On success the root's version advances past the appended events, the uncommitted
// buffer is cleared, and the committed events are returned as envelopes for
// publishing. A root without uncommitted events saves to nil, nil.
//
// On eventlog.ErrConcurrencyConflict nothing was written; callers reload and
// re-run their command, usually via RetryWithExponentialBackoff.
func (s *Session) Save(ctx context.Context, streamID eventlog.StreamIDString, root aggregate.Root) (domain.Envelopes, error) {
	events := root.UncommittedEvents()
	if len(events) == 0 {
		return nil, nil
	}

	correlationID, causationID := domain.CorrelationFrom(ctx)
	if correlationID == "" {
		correlationID = s.newID()
	}

	envelopes := make(domain.Envelopes, 0, len(events))
	storedEvents := make(eventlog.StoredEvents, 0, len(events))

	for _, event := range events {
		metadata := domain.BuildEventMetadata(s.newID(), correlationID, causationID)

		storedEvent, mappingErr := mapToStoredEvent(event, metadata)
		if mappingErr != nil {
			return nil, mappingErr
		}

		envelopes = append(envelopes, domain.BuildEnvelope(event, metadata))
		storedEvents = append(storedEvents, storedEvent)
	}

	expectedVersion := root.Version()

	if appendErr := s.log.Append(ctx, streamID, expectedVersion, storedEvents...); appendErr != nil {
		return nil, appendErr
	}

	root.SetVersion(expectedVersion + eventlog.StreamVersionUint(len(events)))
	root.ClearUncommittedEvents()

	if s.logger != nil {
		s.logger.InfoContext(ctx, logMsgEventsCommitted,
			logAttrStreamID, streamID,
			logAttrEventCount, len(events),
			logAttrStreamVersion, root.Version(),
			logAttrCorrelationID, correlationID)
	}

	return envelopes, nil
}

// replayInto fetches the stream and applies its events to the root in order.
// Event types the registry does not know are skipped, not failed on.
func (s *Session) replayInto(ctx context.Context, streamID eventlog.StreamIDString, root aggregate.Root) error {
	storedEvents, version, fetchErr := s.log.Fetch(ctx, streamID)
	if fetchErr != nil {
		return fetchErr
	}

	for _, storedEvent := range storedEvents {
		event, unmarshalErr := s.registry.Unmarshal(storedEvent.EventType, storedEvent.PayloadJSON)
		if unmarshalErr != nil {
			if errors.Is(unmarshalErr, domain.ErrUnknownEventType) {
				if s.logger != nil {
					s.logger.DebugContext(ctx, logMsgUnknownEventTypeSkipped,
						logAttrStreamID, streamID,
						logAttrEventType, storedEvent.EventType)
				}

				continue
			}

			return unmarshalErr
		}

		root.ApplyEvent(event)
	}

	root.SetVersion(version)

	return nil
}

func mapToStoredEvent(event domain.Event, metadata domain.EventMetadata) (eventlog.StoredEvent, error) {
	payloadJSON, payloadErr := event.PayloadToJSON()
	if payloadErr != nil {
		return eventlog.StoredEvent{}, errors.Join(ErrMappingEventForStorageFailed, payloadErr)
	}

	metadataJSON, metadataErr := metadata.ToJSON()
	if metadataErr != nil {
		return eventlog.StoredEvent{}, errors.Join(ErrMappingEventForStorageFailed, metadataErr)
	}

	storedEvent, buildErr := eventlog.BuildStoredEvent(event.EventType(), event.HasOccurredAt(), payloadJSON, metadataJSON)
	if buildErr != nil {
		return eventlog.StoredEvent{}, errors.Join(ErrMappingEventForStorageFailed, buildErr)
	}

	return storedEvent, nil
}
