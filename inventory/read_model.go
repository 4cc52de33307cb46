package inventory

import (
	"sort"
	"sync"
	"time"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/publish"
)

// StockView is the read model's denormalized row for one product's stock.
type StockView struct {
	ProductID   string
	ProductName string
	OnHand      int
	Reserved    int
	Available   int
	UpdatedAt   time.Time
}

// ReadModel projects inventory events into queryable views, in memory.
//
// Envelopes already applied (tracked by event id) are skipped, so redelivery of
// an envelope leaves the view unchanged.
type ReadModel struct {
	mu    sync.RWMutex
	views map[string]StockView
	seen  map[domain.EventIDString]bool
}

// NewReadModel creates an empty stock read model.
func NewReadModel() *ReadModel {
	return &ReadModel{
		views: make(map[string]StockView),
		seen:  make(map[domain.EventIDString]bool),
	}
}

// Register subscribes the read model to all inventory event types as sinks.
func (rm *ReadModel) Register(publisher *publish.Publisher) error {
	for _, eventType := range []domain.EventTypeString{
		StockInitializedEventType,
		StockReservedEventType,
		StockDeductedEventType,
		StockRestockedEventType,
	} {
		if err := publisher.Register(publish.NewSink(eventType, rm.apply)); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the view for one product.
func (rm *ReadModel) Get(productID string) (StockView, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	view, found := rm.views[productID]

	return view, found
}

// List returns all stock views sorted by product id.
func (rm *ReadModel) List() []StockView {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	views := make([]StockView, 0, len(rm.views))
	for _, view := range rm.views {
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].ProductID < views[j].ProductID
	})

	return views
}

func (rm *ReadModel) apply(envelope domain.Envelope) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if envelope.Metadata.EventID != "" && rm.seen[envelope.Metadata.EventID] {
		return
	}

	switch event := envelope.Event.(type) {
	case StockInitialized:
		rm.views[event.ProductID] = StockView{
			ProductID:   event.ProductID,
			ProductName: event.ProductName,
			OnHand:      event.OnHand,
			Available:   event.OnHand,
			UpdatedAt:   event.OccurredAt,
		}
	case StockReserved:
		if view, found := rm.views[event.ProductID]; found {
			view.Reserved += event.Quantity
			view.Available = view.OnHand - view.Reserved
			view.UpdatedAt = event.OccurredAt
			rm.views[event.ProductID] = view
		}
	case StockDeducted:
		if view, found := rm.views[event.ProductID]; found {
			view.OnHand -= event.Quantity
			view.Reserved -= event.Quantity
			view.Available = view.OnHand - view.Reserved
			view.UpdatedAt = event.OccurredAt
			rm.views[event.ProductID] = view
		}
	case StockRestocked:
		if view, found := rm.views[event.ProductID]; found {
			view.OnHand += event.Quantity
			view.Available = view.OnHand - view.Reserved
			view.UpdatedAt = event.OccurredAt
			rm.views[event.ProductID] = view
		}
	}

	if envelope.Metadata.EventID != "" {
		rm.seen[envelope.Metadata.EventID] = true
	}
}
