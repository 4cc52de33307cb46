package orders

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// OrderStockReservedEventType is the event type identifier.
const OrderStockReservedEventType = "OrderStockReserved"

// OrderStockReserved represents when the stock reservation for an order was
// confirmed by the inventory context, moving the order from Pending to Placed.
type OrderStockReserved struct {
	OrderID    string              `json:"orderId"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

// BuildOrderStockReserved creates a new OrderStockReserved event.
func BuildOrderStockReserved(orderID string, occurredAt time.Time) OrderStockReserved {
	return OrderStockReserved{
		OrderID:    orderID,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e OrderStockReserved) EventType() string {
	return OrderStockReservedEventType
}

// HasOccurredAt returns when this event occurred.
func (e OrderStockReserved) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e OrderStockReserved) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// OrderStockReservedFromJSON deserializes a stored payload into an OrderStockReserved event.
func OrderStockReservedFromJSON(payload []byte) (domain.Event, error) {
	event := new(OrderStockReserved)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
