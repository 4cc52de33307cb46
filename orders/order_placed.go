package orders

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// OrderPlacedEventType is the event type identifier.
const OrderPlacedEventType = "OrderPlaced"

// OrderPlaced represents when a new order was accepted into the system.
// The order starts in status Pending until its stock reservation is confirmed.
type OrderPlaced struct {
	OrderID    string              `json:"orderId"`
	ProductID  string              `json:"productId"`
	Quantity   int                 `json:"quantity"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

// BuildOrderPlaced creates a new OrderPlaced event.
func BuildOrderPlaced(orderID string, productID string, quantity int, occurredAt time.Time) OrderPlaced {
	return OrderPlaced{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e OrderPlaced) EventType() string {
	return OrderPlacedEventType
}

// HasOccurredAt returns when this event occurred.
func (e OrderPlaced) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e OrderPlaced) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// OrderPlacedFromJSON deserializes a stored payload into an OrderPlaced event.
func OrderPlacedFromJSON(payload []byte) (domain.Event, error) {
	event := new(OrderPlaced)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
