// Package memoryengine provides an in-process eventlog.Log backed by a mutex-guarded
// map of streams. It honors the same contract as the SQL engine, including the
// expected-version check on append, and is intended for tests and demos.
package memoryengine

import (
	"context"
	"sync"

	"github.com/flowline/eventflow-go/eventlog"
)

const (
	logMsgEventsAppended      = "event log operation: events appended"
	logMsgConcurrencyConflict = "event log operation: concurrency conflict detected"
	logAttrStreamID           = "stream_id"
	logAttrEventCount         = "event_count"
	logAttrExpectedVersion    = "expected_version"
	logAttrActualVersion      = "actual_version"
)

// EventLog is an in-memory implementation of eventlog.Log.
// Safe for concurrent use from arbitrary request-handling goroutines.
type EventLog struct {
	mu      sync.RWMutex
	streams map[eventlog.StreamIDString]eventlog.StoredEvents
	logger  eventlog.Logger
}

// Option defines a functional option for configuring the in-memory EventLog.
type Option func(*EventLog)

// WithLogger sets the logger for the EventLog.
func WithLogger(logger eventlog.Logger) Option {
	return func(l *EventLog) {
		l.logger = logger
	}
}

// NewEventLog creates an empty in-memory event log with optional configuration.
func NewEventLog(options ...Option) *EventLog {
	l := &EventLog{
		streams: make(map[eventlog.StreamIDString]eventlog.StoredEvents),
	}

	for _, option := range options {
		option(l)
	}

	return l
}

// Fetch returns the ordered events of the given stream and its current version.
// A stream that was never written to yields an empty slice and version zero.
func (l *EventLog) Fetch(ctx context.Context, streamID eventlog.StreamIDString) (
	eventlog.StoredEvents,
	eventlog.StreamVersionUint,
	error,
) {

	if streamID == "" {
		return nil, 0, eventlog.ErrEmptyStreamID
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	stream := l.streams[streamID]
	events := make(eventlog.StoredEvents, len(stream))
	copy(events, stream)

	return events, eventlog.StreamVersionUint(len(stream)), nil
}

// Append appends the given events atomically, conditioned on the stream being at
// exactly expectedVersion, and fails with eventlog.ErrConcurrencyConflict otherwise.
func (l *EventLog) Append(
	ctx context.Context,
	streamID eventlog.StreamIDString,
	expectedVersion eventlog.StreamVersionUint,
	events ...eventlog.StoredEvent,
) error {

	if streamID == "" {
		return eventlog.ErrEmptyStreamID
	}

	if len(events) == 0 {
		return eventlog.ErrNoEventsToAppend
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[streamID]
	actualVersion := eventlog.StreamVersionUint(len(stream))

	if actualVersion != expectedVersion {
		if l.logger != nil {
			l.logger.Info(logMsgConcurrencyConflict,
				logAttrStreamID, streamID,
				logAttrExpectedVersion, expectedVersion,
				logAttrActualVersion, actualVersion,
			)
		}

		return eventlog.ErrConcurrencyConflict
	}

	l.streams[streamID] = append(stream, events...)

	if l.logger != nil {
		l.logger.Info(logMsgEventsAppended,
			logAttrStreamID, streamID,
			logAttrEventCount, len(events),
		)
	}

	return nil
}
