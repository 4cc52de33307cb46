package memoryengine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/eventflow-go/eventlog"
)

func buildTestEvent(t *testing.T, eventType string) eventlog.StoredEvent {
	t.Helper()

	event, err := eventlog.BuildStoredEventWithEmptyMetadata(eventType, time.Now(), []byte(`{"some": "payload"}`))
	require.NoError(t, err)

	return event
}

func Test_EventLog_Fetch_EmptyStream(t *testing.T) {
	log := NewEventLog()

	events, version, err := log.Fetch(context.Background(), "order-unknown")

	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, eventlog.StreamVersionUint(0), version)
}

func Test_EventLog_Fetch_EmptyStreamID(t *testing.T) {
	log := NewEventLog()

	_, _, err := log.Fetch(context.Background(), "")

	assert.ErrorIs(t, err, eventlog.ErrEmptyStreamID)
}

func Test_EventLog_Append_ThenFetch(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	first := buildTestEvent(t, "FirstEvent")
	second := buildTestEvent(t, "SecondEvent")

	err := log.Append(ctx, "order-1", 0, first, second)
	require.NoError(t, err)

	events, version, fetchErr := log.Fetch(ctx, "order-1")

	assert.NoError(t, fetchErr)
	assert.Equal(t, eventlog.StreamVersionUint(2), version)
	require.Len(t, events, 2)
	assert.Equal(t, "FirstEvent", events[0].EventType)
	assert.Equal(t, "SecondEvent", events[1].EventType)
}

func Test_EventLog_Append_ConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	event := buildTestEvent(t, "SomeEvent")

	require.NoError(t, log.Append(ctx, "order-1", 0, event))

	err := log.Append(ctx, "order-1", 0, buildTestEvent(t, "AnotherEvent"))

	assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
}

func Test_EventLog_Append_NoEvents(t *testing.T) {
	log := NewEventLog()

	err := log.Append(context.Background(), "order-1", 0)

	assert.ErrorIs(t, err, eventlog.ErrNoEventsToAppend)
}

func Test_EventLog_Append_StreamsAreIsolated(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()

	require.NoError(t, log.Append(ctx, "order-1", 0, buildTestEvent(t, "OrderEvent")))
	require.NoError(t, log.Append(ctx, "stock-1", 0, buildTestEvent(t, "StockEvent")))

	_, orderVersion, _ := log.Fetch(ctx, "order-1")
	_, stockVersion, _ := log.Fetch(ctx, "stock-1")

	assert.Equal(t, eventlog.StreamVersionUint(1), orderVersion)
	assert.Equal(t, eventlog.StreamVersionUint(1), stockVersion)
}

func Test_EventLog_Append_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	const writers = 10

	var wg sync.WaitGroup
	results := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = log.Append(ctx, "order-1", 0, buildTestEvent(t, fmt.Sprintf("Event%d", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, eventlog.ErrConcurrencyConflict)
		}
	}

	assert.Equal(t, 1, succeeded)

	_, version, _ := log.Fetch(ctx, "order-1")
	assert.Equal(t, eventlog.StreamVersionUint(1), version)
}

func Test_EventLog_Fetch_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	require.NoError(t, log.Append(ctx, "order-1", 0, buildTestEvent(t, "SomeEvent")))

	events, _, _ := log.Fetch(ctx, "order-1")
	events[0].EventType = "Mutated"

	refetched, _, _ := log.Fetch(ctx, "order-1")
	assert.Equal(t, "SomeEvent", refetched[0].EventType)
}
