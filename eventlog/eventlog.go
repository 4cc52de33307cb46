package eventlog

import (
	"context"
	"errors"
)

var (
	// ErrConcurrencyConflict is returned by Append when another writer appended to the
	// stream after the expected version was observed. The caller must reload and
	// re-apply its business logic; the log never retries on its own.
	ErrConcurrencyConflict = errors.New("concurrency conflict, stream version does not match expected version")

	// ErrEmptyStreamID is returned when an empty stream id is supplied.
	ErrEmptyStreamID = errors.New("empty stream id supplied")

	// ErrNoEventsToAppend is returned when Append is called without events.
	ErrNoEventsToAppend = errors.New("no events to append")

	// ErrNilDatabaseConnection is returned by engine constructors when the database handle is nil.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyEventsTableName is returned when an empty event table name is configured.
	ErrEmptyEventsTableName = errors.New("empty events table name supplied")

	// ErrBuildingQueryFailed is returned when an engine fails to build a query.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingEventsFailed is returned when an engine fails to execute a fetch.
	ErrQueryingEventsFailed = errors.New("querying events failed")

	// ErrAppendingEventsFailed is returned when an engine fails to execute an append.
	ErrAppendingEventsFailed = errors.New("appending events failed")

	// ErrScanningDBRowFailed is returned when an engine fails to scan a result row.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")

	// ErrBuildingStoredEventFailed is returned when a fetched row does not form a valid StoredEvent.
	ErrBuildingStoredEventFailed = errors.New("building stored event from database row failed")

	// ErrGettingRowsAffectedFailed is returned when an engine cannot determine the append result.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
)

// StreamIDString is an alias type for stream identifiers. Streams of different
// bounded contexts carry distinct prefixes (for example "order-" and "stock-") and
// never share identity, even when they reference the same external-facing id.
type StreamIDString = string

// StreamVersionUint is an alias type for a stream's version: the count of events
// committed to the stream.
type StreamVersionUint = uint

// Log is the append-only per-stream storage contract consumed by the session.
//
// Fetch returns the ordered events of one stream together with its current version.
// A stream that was never written to yields an empty slice and version zero, not an
// error; the distinction between "create" and "load" is the session's concern.
//
// Append appends the given events atomically, conditioned on the stream being at
// exactly expectedVersion, and fails with ErrConcurrencyConflict otherwise. The
// version check is the only writer serialization point in the whole design.
type Log interface {
	Fetch(ctx context.Context, streamID StreamIDString) (StoredEvents, StreamVersionUint, error)
	Append(ctx context.Context, streamID StreamIDString, expectedVersion StreamVersionUint, events ...StoredEvent) error
}
