package sqlengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowline/eventflow-go/eventlog"
)

func Test_NewEventLogFromPGXPool_NilConnection(t *testing.T) {
	_, err := NewEventLogFromPGXPool(nil)

	assert.ErrorIs(t, err, eventlog.ErrNilDatabaseConnection)
}

func Test_NewEventLogFromSQLDB_NilConnection(t *testing.T) {
	_, err := NewEventLogFromSQLDB(nil)

	assert.ErrorIs(t, err, eventlog.ErrNilDatabaseConnection)
}

func Test_NewEventLogFromSQLX_NilConnection(t *testing.T) {
	_, err := NewEventLogFromSQLX(nil)

	assert.ErrorIs(t, err, eventlog.ErrNilDatabaseConnection)
}

func Test_WithTableName_EmptyName(t *testing.T) {
	err := WithTableName("")(&EventLog{})

	assert.ErrorIs(t, err, eventlog.ErrEmptyEventsTableName)
}

func Test_WithDialect_Unsupported(t *testing.T) {
	err := WithDialect("oracle")(&EventLog{})

	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

func Test_WithDialect_SupportedDialects(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		l := &EventLog{}

		err := WithDialect(dialect)(l)

		assert.NoError(t, err)
		assert.Equal(t, dialect, l.dialect)
	}
}

func Test_BuildSelectQuery_ContainsStreamFilterAndOrdering(t *testing.T) {
	l := EventLog{eventTableName: defaultEventTableName, dialect: DialectPostgres}

	sqlQuery, err := l.buildSelectQuery("order-1")

	assert.NoError(t, err)
	assert.Contains(t, sqlQuery, `"events"`)
	assert.Contains(t, sqlQuery, "order-1")
	assert.Contains(t, sqlQuery, `ORDER BY "version" ASC`)
}

func Test_BuildAppendQuery_SingleEvent_GuardsOnExpectedVersion(t *testing.T) {
	l := EventLog{eventTableName: defaultEventTableName, dialect: DialectPostgres}
	event := mustBuildStoredEvent(t)

	sqlQuery, err := l.buildAppendQuery("order-1", 3, eventlog.StoredEvents{event})

	assert.NoError(t, err)
	assert.Contains(t, sqlQuery, "INSERT INTO")
	assert.Contains(t, sqlQuery, cteCurrent)
	assert.Contains(t, sqlQuery, "max_version + 1")
	assert.Contains(t, sqlQuery, `"max_version" = 3`)
}

func Test_BuildAppendQuery_MultipleEvents_UsesOffsets(t *testing.T) {
	l := EventLog{eventTableName: defaultEventTableName, dialect: DialectPostgres}
	first := mustBuildStoredEvent(t)
	second := mustBuildStoredEvent(t)

	sqlQuery, err := l.buildAppendQuery("order-1", 0, eventlog.StoredEvents{first, second})

	assert.NoError(t, err)
	assert.Contains(t, sqlQuery, cteVals)
	assert.Contains(t, sqlQuery, colOffset)
	assert.Contains(t, sqlQuery, "UNION ALL")
	assert.Contains(t, sqlQuery, "max_version + vals.event_offset")
}

func Test_ValidateAppendResult_ConflictWhenNothingInserted(t *testing.T) {
	l := EventLog{}

	err := l.validateAppendResult("order-1", 0, 2, 5)

	assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
}

func Test_ValidateAppendResult_SuccessWhenAllRowsInserted(t *testing.T) {
	l := EventLog{}

	err := l.validateAppendResult("order-1", 2, 2, 5)

	assert.NoError(t, err)
}

func mustBuildStoredEvent(t *testing.T) eventlog.StoredEvent {
	t.Helper()

	event, err := eventlog.BuildStoredEventWithEmptyMetadata("SomeEvent", time.Now(), []byte(`{"a": 1}`))
	if err != nil {
		t.Fatal(err)
	}

	return event
}
