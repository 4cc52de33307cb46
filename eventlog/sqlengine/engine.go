package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/flowline/eventflow-go/eventlog"
	"github.com/flowline/eventflow-go/eventlog/sqlengine/internal/adapters"
)

const (
	// DialectPostgres selects the Postgres SQL dialect.
	DialectPostgres = "postgres"

	// DialectSQLite selects the SQLite SQL dialect.
	DialectSQLite = "sqlite3"
)

const (
	defaultEventTableName        = "events"
	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgBuildStoredEventFailed = "failed to build stored event from database row"
	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgDBExecFailed           = "database execution failed during event append"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgFetchCompleted         = "fetch completed"
	logMsgEventsAppended         = "events appended"
	logMsgConcurrencyConflict    = "concurrency conflict detected"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "event log operation: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrStreamID              = "stream_id"
	logAttrEventCount            = "event_count"
	logAttrEventType             = "event_type"
	logAttrDurationMS            = "duration_ms"
	logAttrExpectedEvents        = "expected_events"
	logAttrRowsAffected          = "rows_affected"
	logAttrExpectedVersion       = "expected_version"
	logActionFetch               = "fetch"
	logActionAppend              = "append"
	colStreamID                  = "stream_id"
	colVersion                   = "version"
	colEventType                 = "event_type"
	colOccurredAt                = "occurred_at"
	colPayload                   = "payload"
	colMetadata                  = "metadata"
	colOffset                    = "event_offset"
	cteCurrent                   = "current_stream"
	cteVals                      = "vals"
	aliasMaxVersion              = "max_version"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// EventLog implements eventlog.Log on a SQL database through a DBAdapter.
// The version check is enforced inside a single conditional insert statement,
// so concurrent writers to one stream serialize on the database, not in-process.
type EventLog struct {
	db             adapters.DBAdapter
	eventTableName string
	dialect        string
	logger         eventlog.Logger
}

// Option defines a functional option for configuring the EventLog.
type Option func(*EventLog) error

// WithTableName sets the table name for the EventLog.
func WithTableName(tableName string) Option {
	return func(l *EventLog) error {
		if tableName == "" {
			return eventlog.ErrEmptyEventsTableName
		}

		l.eventTableName = tableName

		return nil
	}
}

// WithDialect selects the SQL dialect. DialectPostgres is the default;
// DialectSQLite is intended for the database/sql constructor with the
// modernc.org/sqlite driver.
func WithDialect(dialect string) Option {
	return func(l *EventLog) error {
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return ErrUnsupportedDialect
		}

		l.dialect = dialect

		return nil
	}
}

// WithLogger sets the logger for the EventLog.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: event counts, durations, concurrency conflicts (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause operation errors.
func WithLogger(logger eventlog.Logger) Option {
	return func(l *EventLog) error {
		l.logger = logger
		return nil
	}
}

// ErrUnsupportedDialect is returned when an unknown SQL dialect is configured.
var ErrUnsupportedDialect = errors.New("unsupported sql dialect")

// NewEventLogFromPGXPool creates a new EventLog using a pgx pool with optional configuration.
func NewEventLogFromPGXPool(db *pgxpool.Pool, options ...Option) (EventLog, error) {
	if db == nil {
		return EventLog{}, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewPGXAdapter(db), options...)
}

// NewEventLogFromSQLDB creates a new EventLog using a sql.DB with optional configuration.
// Combine with WithDialect(DialectSQLite) for the modernc.org/sqlite driver.
func NewEventLogFromSQLDB(db *sql.DB, options ...Option) (EventLog, error) {
	if db == nil {
		return EventLog{}, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewSQLAdapter(db), options...)
}

// NewEventLogFromSQLX creates a new EventLog using a sqlx.DB with optional configuration.
func NewEventLogFromSQLX(db *sqlx.DB, options ...Option) (EventLog, error) {
	if db == nil {
		return EventLog{}, eventlog.ErrNilDatabaseConnection
	}

	return newEventLog(adapters.NewSQLXAdapter(db), options...)
}

func newEventLog(db adapters.DBAdapter, options ...Option) (EventLog, error) {
	l := EventLog{
		db:             db,
		eventTableName: defaultEventTableName,
		dialect:        DialectPostgres,
	}

	for _, option := range options {
		if err := option(&l); err != nil {
			return EventLog{}, err
		}
	}

	return l, nil
}

type queryResultRow struct {
	eventType  string
	occurredAt time.Time
	payload    []byte
	metadata   []byte
	version    eventlog.StreamVersionUint
}

// Fetch retrieves the ordered events of one stream and the stream's current version.
// A stream that was never written to yields an empty slice and version zero.
func (l EventLog) Fetch(ctx context.Context, streamID eventlog.StreamIDString) (
	eventlog.StoredEvents,
	eventlog.StreamVersionUint,
	error,
) {

	var empty eventlog.StoredEvents

	if streamID == "" {
		return empty, 0, eventlog.ErrEmptyStreamID
	}

	sqlQuery, buildQueryErr := l.buildSelectQuery(streamID)
	if buildQueryErr != nil {
		if l.logger != nil {
			l.logger.Error(logMsgBuildSelectQueryFailed, logAttrError, buildQueryErr.Error())
		}
		return empty, 0, buildQueryErr
	}

	rows, duration, queryErr := l.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return empty, 0, queryErr
	}
	defer l.closeRows(rows)

	eventStream, version, scanErr := l.processQueryResults(rows)
	if scanErr != nil {
		return empty, 0, scanErr
	}

	l.logOperation(
		logMsgFetchCompleted,
		logAttrStreamID, streamID,
		logAttrEventCount, len(eventStream),
		logAttrDurationMS, l.durationToMilliseconds(duration))

	return eventStream, version, nil
}

// Append appends one or multiple events onto the stream, conditioned on the stream
// being exactly at expectedVersion, and fails with eventlog.ErrConcurrencyConflict
// otherwise.
func (l EventLog) Append(
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

	sqlQuery, buildQueryErr := l.buildAppendQuery(streamID, expectedVersion, events)
	if buildQueryErr != nil {
		if l.logger != nil {
			l.logger.Error(logMsgBuildInsertQueryFailed, logAttrError, buildQueryErr.Error(), logAttrEventCount, len(events))
		}

		return buildQueryErr
	}

	rowsAffected, duration, execErr := l.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if err := l.validateAppendResult(streamID, rowsAffected, len(events), expectedVersion); err != nil {
		return err
	}

	l.logOperation(
		logMsgEventsAppended,
		logAttrStreamID, streamID,
		logAttrEventCount, len(events),
		logAttrDurationMS, l.durationToMilliseconds(duration),
	)

	return nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (l EventLog) executeQuery(ctx context.Context, sqlQuery string) (
	adapters.DBRows,
	time.Duration,
	error,
) {

	start := time.Now()
	rows, queryErr := l.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	l.logQueryWithDuration(sqlQuery, logActionFetch, duration)

	if queryErr != nil {
		if l.logger != nil {
			l.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		}

		return nil, duration, errors.Join(eventlog.ErrQueryingEventsFailed, queryErr)
	}

	return rows, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (l EventLog) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if l.logger != nil {
			l.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// processQueryResults converts database rows to stored events and tracks the stream version.
func (l EventLog) processQueryResults(rows adapters.DBRows) (
	eventlog.StoredEvents,
	eventlog.StreamVersionUint,
	error,
) {

	var empty eventlog.StoredEvents
	result := queryResultRow{}
	eventStream := make(eventlog.StoredEvents, 0)
	version := eventlog.StreamVersionUint(0)

	for rows.Next() {
		rowScanErr := rows.Scan(&result.eventType, &result.occurredAt, &result.payload, &result.metadata, &result.version)
		if rowScanErr != nil {
			if l.logger != nil {
				l.logger.Error(logMsgScanRowFailed, logAttrError, rowScanErr.Error())
			}

			return empty, 0, errors.Join(eventlog.ErrScanningDBRowFailed, rowScanErr)
		}

		event, buildStoredErr := eventlog.BuildStoredEvent(result.eventType, result.occurredAt, result.payload, result.metadata)
		if buildStoredErr != nil {
			if l.logger != nil {
				l.logger.Error(logMsgBuildStoredEventFailed, logAttrError, buildStoredErr.Error(), logAttrEventType, result.eventType)
			}

			return empty, 0, errors.Join(eventlog.ErrBuildingStoredEventFailed, buildStoredErr)
		}

		eventStream = append(eventStream, event)
		version = result.version
	}

	return eventStream, version, nil
}

// executeAppendQuery executes the SQL append statement and returns rows affected and duration.
func (l EventLog) executeAppendQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	tag, execErr := l.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	l.logQueryWithDuration(sqlQuery, logActionAppend, duration)

	if execErr != nil {
		if l.logger != nil {
			l.logger.Error(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		}

		return 0, duration, errors.Join(eventlog.ErrAppendingEventsFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := tag.RowsAffected()
	if rowsAffectedErr != nil {
		if l.logger != nil {
			l.logger.Error(logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		}

		return 0, duration, errors.Join(eventlog.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// validateAppendResult checks if the append succeeded and detects concurrency conflicts.
// The guarded insert inserts zero rows when the version check fails.
func (l EventLog) validateAppendResult(
	streamID eventlog.StreamIDString,
	rowsAffected int64,
	expectedEventCount int,
	expectedVersion eventlog.StreamVersionUint,
) error {

	if rowsAffected < int64(expectedEventCount) {
		l.logOperation(
			logMsgConcurrencyConflict,
			logAttrStreamID, streamID,
			logAttrExpectedEvents, expectedEventCount,
			logAttrRowsAffected, rowsAffected,
			logAttrExpectedVersion, expectedVersion,
		)

		return eventlog.ErrConcurrencyConflict
	}

	return nil
}

func (l EventLog) buildSelectQuery(streamID eventlog.StreamIDString) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(l.dialect).
		From(l.eventTableName).
		Select(colEventType, colOccurredAt, colPayload, colMetadata, colVersion).
		Where(goqu.Ex{colStreamID: streamID}).
		Order(goqu.I(colVersion).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildAppendQuery builds the appropriate conditional insert for single or multiple events.
func (l EventLog) buildAppendQuery(
	streamID eventlog.StreamIDString,
	expectedVersion eventlog.StreamVersionUint,
	events eventlog.StoredEvents,
) (sqlQueryString, error) {

	if len(events) == 1 {
		return l.buildInsertQueryForSingleEvent(streamID, expectedVersion, events[0])
	}

	return l.buildInsertQueryForMultipleEvents(streamID, expectedVersion, events)
}

func (l EventLog) buildInsertQueryForSingleEvent(
	streamID eventlog.StreamIDString,
	expectedVersion eventlog.StreamVersionUint,
	event eventlog.StoredEvent,
) (sqlQueryString, error) {

	builder := goqu.Dialect(l.dialect)

	// CTE reading the stream's current max version
	cteStmt := builder.
		From(l.eventTableName).
		Select(goqu.COALESCE(goqu.MAX(colVersion), 0).As(aliasMaxVersion)).
		Where(goqu.Ex{colStreamID: streamID})

	// SELECT feeding the INSERT; inserts nothing unless the version check holds
	selectStmt := builder.
		From(cteCurrent).
		Select(
			goqu.V(streamID),
			goqu.L(aliasMaxVersion+" + 1"),
			goqu.V(event.EventType),
			goqu.V(event.OccurredAt),
			goqu.V(string(event.PayloadJSON)),
			goqu.V(string(event.MetadataJSON)),
		).
		Where(goqu.C(aliasMaxVersion).Eq(goqu.V(expectedVersion)))

	insertStmt := builder.
		Insert(l.eventTableName).
		Cols(colStreamID, colVersion, colEventType, colOccurredAt, colPayload, colMetadata).
		FromQuery(selectStmt).
		With(cteCurrent, cteStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (l EventLog) buildInsertQueryForMultipleEvents(
	streamID eventlog.StreamIDString,
	expectedVersion eventlog.StreamVersionUint,
	events eventlog.StoredEvents,
) (sqlQueryString, error) {

	builder := goqu.Dialect(l.dialect)

	// CTE reading the stream's current max version
	cteStmt := builder.
		From(l.eventTableName).
		Select(goqu.COALESCE(goqu.MAX(colVersion), 0).As(aliasMaxVersion)).
		Where(goqu.Ex{colStreamID: streamID})

	// One SELECT per event, combined with UNION ALL into the vals CTE;
	// the offset keeps versions strictly ordered within the batch.
	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.V(i+1).As(colOffset),
				goqu.V(event.EventType).As(colEventType),
				goqu.V(event.OccurredAt).As(colOccurredAt),
				goqu.V(string(event.PayloadJSON)).As(colPayload),
				goqu.V(string(event.MetadataJSON)).As(colMetadata),
			)
	}

	valsStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valsStmt = valsStmt.UnionAll(unionStatements[i])
	}

	insertStmt := builder.
		Insert(l.eventTableName).
		Cols(colStreamID, colVersion, colEventType, colOccurredAt, colPayload, colMetadata).
		With(cteCurrent, cteStmt).
		With(cteVals, valsStmt).
		FromQuery(
			builder.From(cteCurrent, cteVals).
				Select(
					goqu.V(streamID),
					goqu.L(aliasMaxVersion+" + "+cteVals+"."+colOffset),
					goqu.I(cteVals+"."+colEventType),
					goqu.I(cteVals+"."+colOccurredAt),
					goqu.I(cteVals+"."+colPayload),
					goqu.I(cteVals+"."+colMetadata),
				).
				Where(goqu.C(aliasMaxVersion).Eq(goqu.V(expectedVersion))).
				Order(goqu.I(cteVals + "." + colOffset).Asc()),
		)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventlog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (l EventLog) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {

	if l.logger != nil {
		l.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, l.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (l EventLog) logOperation(action string, args ...any) {
	if l.logger != nil {
		l.logger.Info(logMsgOperation+action, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (l EventLog) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
