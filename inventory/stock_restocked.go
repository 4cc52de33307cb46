package inventory

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// StockRestockedEventType is the event type identifier.
const StockRestockedEventType = "StockRestocked"

// StockRestocked represents when new stock arrived, increasing the on-hand count.
type StockRestocked struct {
	ProductID  string              `json:"productId"`
	Quantity   int                 `json:"quantity"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

// BuildStockRestocked creates a new StockRestocked event.
func BuildStockRestocked(productID string, quantity int, occurredAt time.Time) StockRestocked {
	return StockRestocked{
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e StockRestocked) EventType() string {
	return StockRestockedEventType
}

// HasOccurredAt returns when this event occurred.
func (e StockRestocked) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e StockRestocked) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// StockRestockedFromJSON deserializes a stored payload into a StockRestocked event.
func StockRestockedFromJSON(payload []byte) (domain.Event, error) {
	event := new(StockRestocked)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
