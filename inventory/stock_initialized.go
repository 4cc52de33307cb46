package inventory

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/eventflow-go/domain"
)

// StockInitializedEventType is the event type identifier.
const StockInitializedEventType = "StockInitialized"

// StockInitialized represents when stock tracking for a product began.
type StockInitialized struct {
	ProductID   string              `json:"productId"`
	ProductName string              `json:"productName"`
	OnHand      int                 `json:"onHand"`
	OccurredAt  domain.OccurredAtTS `json:"occurredAt"`
}

// BuildStockInitialized creates a new StockInitialized event.
func BuildStockInitialized(productID string, productName string, onHand int, occurredAt time.Time) StockInitialized {
	return StockInitialized{
		ProductID:   productID,
		ProductName: productName,
		OnHand:      onHand,
		OccurredAt:  domain.ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e StockInitialized) EventType() string {
	return StockInitializedEventType
}

// HasOccurredAt returns when this event occurred.
func (e StockInitialized) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// PayloadToJSON serializes the event payload for storage.
func (e StockInitialized) PayloadToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}

// StockInitializedFromJSON deserializes a stored payload into a StockInitialized event.
func StockInitializedFromJSON(payload []byte) (domain.Event, error) {
	event := new(StockInitialized)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}
