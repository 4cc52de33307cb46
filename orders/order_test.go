package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/eventflow-go/domain"
)

func Test_Order_Place_EmitsOrderPlaced(t *testing.T) {
	order := &Order{}

	err := order.Place("o1", "p1", 25, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, "o1", order.AggregateID())
	assert.Equal(t, "p1", order.ProductID())
	assert.Equal(t, 25, order.Quantity())
	assert.Equal(t, StatusPending, order.Status())
	require.Len(t, order.UncommittedEvents(), 1)
	assert.Equal(t, OrderPlacedEventType, order.UncommittedEvents()[0].EventType())
}

func Test_Order_Place_RejectsNonPositiveQuantity(t *testing.T) {
	order := &Order{}

	err := order.Place("o1", "p1", 0, time.Now())

	assert.True(t, domain.IsPreconditionError(err))
	assert.Empty(t, order.UncommittedEvents())
	assert.Empty(t, order.AggregateID())
}

func Test_Order_Place_RejectsDoublePlacement(t *testing.T) {
	order := &Order{}
	require.NoError(t, order.Place("o1", "p1", 25, time.Now()))

	err := order.Place("o1", "p1", 25, time.Now())

	assert.True(t, domain.IsPreconditionError(err))
	assert.Len(t, order.UncommittedEvents(), 1)
}

func Test_Order_Lifecycle_PendingToPlacedToShipped(t *testing.T) {
	now := time.Now()
	order := &Order{}

	require.NoError(t, order.Place("o1", "p1", 25, now))
	require.NoError(t, order.MarkReserved(now))
	assert.Equal(t, StatusPlaced, order.Status())

	require.NoError(t, order.Ship(now))
	assert.Equal(t, StatusShipped, order.Status())

	events := order.UncommittedEvents()
	require.Len(t, events, 3)
	shipped, ok := events[2].(OrderShipped)
	require.True(t, ok)
	assert.Equal(t, "p1", shipped.ProductID)
	assert.Equal(t, 25, shipped.Quantity)
}

func Test_Order_MarkReserved_OnlyLegalFromPending(t *testing.T) {
	now := time.Now()
	order := &Order{}
	require.NoError(t, order.Place("o1", "p1", 25, now))
	require.NoError(t, order.MarkReserved(now))

	err := order.MarkReserved(now)

	assert.True(t, domain.IsPreconditionError(err))
}

func Test_Order_Ship_OnlyLegalFromPlaced(t *testing.T) {
	now := time.Now()

	pending := &Order{}
	require.NoError(t, pending.Place("o1", "p1", 25, now))
	assert.True(t, domain.IsPreconditionError(pending.Ship(now)))

	shipped := &Order{}
	require.NoError(t, shipped.Place("o2", "p1", 25, now))
	require.NoError(t, shipped.MarkReserved(now))
	require.NoError(t, shipped.Ship(now))
	assert.True(t, domain.IsPreconditionError(shipped.Ship(now)))
}

func Test_Order_FailedCommandLeavesStateUntouched(t *testing.T) {
	now := time.Now()
	order := &Order{}
	require.NoError(t, order.Place("o1", "p1", 25, now))

	err := order.Ship(now)

	assert.True(t, domain.IsPreconditionError(err))
	assert.Equal(t, StatusPending, order.Status())
	assert.Len(t, order.UncommittedEvents(), 1)
}

func Test_Order_Replay_ReproducesState(t *testing.T) {
	now := time.Now()
	original := &Order{}
	require.NoError(t, original.Place("o1", "p1", 25, now))
	require.NoError(t, original.MarkReserved(now))

	replayed := &Order{}
	for _, event := range original.UncommittedEvents() {
		replayed.ApplyEvent(event)
	}

	assert.Equal(t, original.AggregateID(), replayed.AggregateID())
	assert.Equal(t, original.ProductID(), replayed.ProductID())
	assert.Equal(t, original.Quantity(), replayed.Quantity())
	assert.Equal(t, original.Status(), replayed.Status())
}

type unrelatedEvent struct{}

func (e unrelatedEvent) EventType() string              { return "UnrelatedEvent" }
func (e unrelatedEvent) HasOccurredAt() time.Time       { return time.Now() }
func (e unrelatedEvent) PayloadToJSON() ([]byte, error) { return []byte(`{}`), nil }

func Test_Order_ApplyEvent_IgnoresUnknownEventTypes(t *testing.T) {
	order := &Order{}
	require.NoError(t, order.Place("o1", "p1", 25, time.Now()))

	order.ApplyEvent(unrelatedEvent{})

	assert.Equal(t, StatusPending, order.Status())
	assert.Equal(t, "o1", order.AggregateID())
}

func Test_OrderEvents_RoundTrip(t *testing.T) {
	placed := BuildOrderPlaced("o1", "p1", 25, time.Now())

	payloadJSON, err := placed.PayloadToJSON()
	require.NoError(t, err)

	decoded, decodeErr := OrderPlacedFromJSON(payloadJSON)
	require.NoError(t, decodeErr)

	assert.Equal(t, placed, decoded)
}

func Test_RegisterEvents_RegistersAllOrderEventTypes(t *testing.T) {
	registry := domain.NewRegistry()

	err := RegisterEvents(registry)

	assert.NoError(t, err)
	assert.True(t, registry.Knows(OrderPlacedEventType))
	assert.True(t, registry.Knows(OrderStockReservedEventType))
	assert.True(t, registry.Knows(OrderShippedEventType))
}
