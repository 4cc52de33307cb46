package inventory

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// StockDeductedEventType is the event type identifier.
const StockDeductedEventType = "StockDeducted"

// StockDeducted represents when reserved stock physically left the warehouse,
// reducing both the on-hand count and the reservation it fulfilled.
type StockDeducted struct {
	ProductID  string              `json:"productId"`
	OrderID    string              `json:"orderId"`
	Quantity   int                 `json:"quantity"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

// BuildStockDeducted creates a new StockDeducted event.
func BuildStockDeducted(productID string, orderID string, quantity int, occurredAt time.Time) StockDeducted {
	return StockDeducted{
		ProductID:  productID,
		OrderID:    orderID,
		Quantity:   quantity,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e StockDeducted) EventType() string {
	return StockDeductedEventType
}

// HasOccurredAt returns when this event occurred.
func (e StockDeducted) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e StockDeducted) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// StockDeductedFromJSON deserializes a stored payload into a StockDeducted event.
func StockDeductedFromJSON(payload []byte) (domain.Event, error) {
	event := new(StockDeducted)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
