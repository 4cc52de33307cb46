package inventory

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// StockReservedEventType is the event type identifier.
const StockReservedEventType = "StockReserved"

// StockReserved represents when stock was reserved for an order.
type StockReserved struct {
	ProductID  string              `json:"productId"`
	OrderID    string              `json:"orderId"`
	Quantity   int                 `json:"quantity"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

// BuildStockReserved creates a new StockReserved event.
func BuildStockReserved(productID string, orderID string, quantity int, occurredAt time.Time) StockReserved {
	return StockReserved{
		ProductID:  productID,
		OrderID:    orderID,
		Quantity:   quantity,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e StockReserved) EventType() string {
	return StockReservedEventType
}

// HasOccurredAt returns when this event occurred.
func (e StockReserved) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e StockReserved) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// StockReservedFromJSON deserializes a stored payload into a StockReserved event.
func StockReservedFromJSON(payload []byte) (domain.Event, error) {
	event := new(StockReserved)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
