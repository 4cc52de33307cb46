// Package sqlengine implements eventlog.Log on top of a SQL database.
//
// Streams are rows sharing a stream_id; the per-stream version column carries the
// optimistic concurrency check. Append builds a single conditional INSERT ... SELECT
// guarded by a CTE reading the stream's current max version, so the version check
// and the insert are atomic without explicit locking.
//
// Supported dialects are postgres (via pgxpool, database/sql with lib/pq, or sqlx)
// and sqlite (via database/sql with modernc.org/sqlite). Expected schema:
//
//	CREATE TABLE events (
//	    sequence_number BIGSERIAL PRIMARY KEY,      -- INTEGER PRIMARY KEY AUTOINCREMENT on sqlite
//	    stream_id       TEXT        NOT NULL,
//	    version         BIGINT      NOT NULL,
//	    event_type      TEXT        NOT NULL,
//	    occurred_at     TIMESTAMPTZ NOT NULL,       -- TEXT on sqlite
//	    payload         TEXT        NOT NULL,
//	    metadata        TEXT        NOT NULL,
//	    UNIQUE (stream_id, version)
//	);
//
// The unique (stream_id, version) constraint is a second line of defense; the
// guarded insert alone already serializes writers per stream.
package sqlengine
