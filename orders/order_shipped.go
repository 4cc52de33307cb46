package orders

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// OrderShippedEventType is the event type identifier.
const OrderShippedEventType = "OrderShipped"

// OrderShipped represents when an order left the warehouse. It carries the
// product and quantity so downstream reactions can deduct stock without
// loading the order stream.
type OrderShipped struct {
	OrderID    string              `json:"orderId"`
	ProductID  string              `json:"productId"`
	Quantity   int                 `json:"quantity"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

// BuildOrderShipped creates a new OrderShipped event.
func BuildOrderShipped(orderID string, productID string, quantity int, occurredAt time.Time) OrderShipped {
	return OrderShipped{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e OrderShipped) EventType() string {
	return OrderShippedEventType
}

// HasOccurredAt returns when this event occurred.
func (e OrderShipped) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e OrderShipped) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// OrderShippedFromJSON deserializes a stored payload into an OrderShipped event.
func OrderShippedFromJSON(payload []byte) (domain.Event, error) {
	event := new(OrderShipped)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
