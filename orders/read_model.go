package orders

import (
	"sort"
	"sync"
	"time"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/publish"
)

// OrderView is the read model's denormalized row for one order.
type OrderView struct {
	OrderID   string
	ProductID string
	Quantity  int
	Status    Status
	UpdatedAt time.Time
}

// ReadModel projects order events into queryable views, in memory.
//
// Envelopes already applied (tracked by event id) are skipped, so redelivery of
// an envelope leaves the view unchanged.
type ReadModel struct {
	mu    sync.RWMutex
	views map[string]OrderView
	seen  map[domain.EventIDString]bool
}

// NewReadModel creates an empty order read model.
func NewReadModel() *ReadModel {
	return &ReadModel{
		views: make(map[string]OrderView),
		seen:  make(map[domain.EventIDString]bool),
	}
}

// Register subscribes the read model to all order event types as sinks.
func (rm *ReadModel) Register(publisher *publish.Publisher) error {
	for _, eventType := range []domain.EventTypeString{
		OrderPlacedEventType,
		OrderStockReservedEventType,
		OrderShippedEventType,
	} {
		if err := publisher.Register(publish.NewSink(eventType, rm.apply)); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the view for one order.
func (rm *ReadModel) Get(orderID string) (OrderView, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	view, found := rm.views[orderID]

	return view, found
}

// List returns all order views sorted by order id.
func (rm *ReadModel) List() []OrderView {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	views := make([]OrderView, 0, len(rm.views))
	for _, view := range rm.views {
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].OrderID < views[j].OrderID
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
	case OrderPlaced:
		rm.views[event.OrderID] = OrderView{
			OrderID:   event.OrderID,
			ProductID: event.ProductID,
			Quantity:  event.Quantity,
			Status:    StatusPending,
			UpdatedAt: event.OccurredAt,
		}
	case OrderStockReserved:
		if view, found := rm.views[event.OrderID]; found {
			view.Status = StatusPlaced
			view.UpdatedAt = event.OccurredAt
			rm.views[event.OrderID] = view
		}
	case OrderShipped:
		if view, found := rm.views[event.OrderID]; found {
			view.Status = StatusShipped
			view.UpdatedAt = event.OccurredAt
			rm.views[event.OrderID] = view
		}
	}

	if envelope.Metadata.EventID != "" {
		rm.seen[envelope.Metadata.EventID] = true
	}
}
