// Package inventory implements the inventory bounded context: the ProductStock
// aggregate, its events, the command handlers, and an in-memory read model.
package inventory

import (
	"time"

	"github.com/flowline/eventflow-go/aggregate"
	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
)

const (
	streamPrefix = "stock-"

	ruleStockAlreadyInitialized = "stock is already initialized"
	ruleStockNotInitialized     = "stock is not initialized"
	ruleQuantityMustBePositive  = "quantity must be positive"
	ruleOnHandMustNotBeNegative = "initial on-hand quantity must not be negative"
	ruleInsufficientStock       = "insufficient stock available"
	ruleOrderAlreadyReserved    = "order already holds a reservation"
	ruleNoReservationForOrder   = "no reservation exists for order"
	ruleDeductExceedsReserved   = "deduction exceeds the order's reservation"
)

// StreamID derives the event stream id for a product's stock. The prefix keeps
// stock streams disjoint from streams of other contexts referencing the same id.
func StreamID(productID string) eventlog.StreamIDString {
	return streamPrefix + productID
}

// RegisterEvents binds all inventory context event types to the registry.
func RegisterEvents(registry *domain.Registry) error {
	registrations := map[domain.EventTypeString]domain.UnmarshalEventFunc{
		StockInitializedEventType: StockInitializedFromJSON,
		StockReservedEventType:    StockReservedFromJSON,
		StockDeductedEventType:    StockDeductedFromJSON,
		StockRestockedEventType:   StockRestockedFromJSON,
	}

	for eventType, unmarshal := range registrations {
		if err := registry.Register(eventType, unmarshal); err != nil {
			return err
		}
	}

	return nil
}

// ProductStock is the event-sourced aggregate root of the inventory context.
//
// OnHand counts physical units in the warehouse; Reserved counts units promised
// to orders but not yet shipped. Available = OnHand - Reserved is what new
// reservations draw from. Deducting fulfills a reservation: it reduces both
// OnHand and Reserved, leaving Available unchanged.
type ProductStock struct {
	aggregate.Base
	productName  string
	onHand       int
	reserved     int
	reservations map[string]int
}

// ProductName returns the product's display name.
func (p *ProductStock) ProductName() string {
	return p.productName
}

// OnHand returns the physical unit count.
func (p *ProductStock) OnHand() int {
	return p.onHand
}

// Reserved returns the unit count promised to orders.
func (p *ProductStock) Reserved() int {
	return p.reserved
}

// Available returns the unit count new reservations can draw from.
func (p *ProductStock) Available() int {
	return p.onHand - p.reserved
}

// ReservationFor returns the reserved quantity held for one order.
func (p *ProductStock) ReservationFor(orderID string) (int, bool) {
	quantity, found := p.reservations[orderID]
	return quantity, found
}

// Initialize begins stock tracking for a product. It is legal only once per stream.
func (p *ProductStock) Initialize(productID string, productName string, onHand int, now time.Time) error {
	if p.AggregateID() != "" {
		return domain.NewPreconditionError(ruleStockAlreadyInitialized)
	}

	if onHand < 0 {
		return domain.NewPreconditionError(ruleOnHandMustNotBeNegative)
	}

	p.Emit(p, BuildStockInitialized(productID, productName, onHand, now))

	return nil
}

// Reserve promises quantity units to an order. It fails when the available
// count is insufficient or the order already holds a reservation.
func (p *ProductStock) Reserve(quantity int, orderID string, now time.Time) error {
	if p.AggregateID() == "" {
		return domain.NewPreconditionError(ruleStockNotInitialized)
	}

	if quantity <= 0 {
		return domain.NewPreconditionError(ruleQuantityMustBePositive)
	}

	if _, alreadyReserved := p.reservations[orderID]; alreadyReserved {
		return domain.NewPreconditionError(ruleOrderAlreadyReserved)
	}

	if quantity > p.Available() {
		return domain.NewPreconditionError(ruleInsufficientStock)
	}

	p.Emit(p, BuildStockReserved(p.AggregateID(), orderID, quantity, now))

	return nil
}

// Deduct fulfills (part of) an order's reservation when units ship, reducing
// both the on-hand count and the reservation.
func (p *ProductStock) Deduct(quantity int, orderID string, now time.Time) error {
	if p.AggregateID() == "" {
		return domain.NewPreconditionError(ruleStockNotInitialized)
	}

	if quantity <= 0 {
		return domain.NewPreconditionError(ruleQuantityMustBePositive)
	}

	reservedForOrder, found := p.reservations[orderID]
	if !found {
		return domain.NewPreconditionError(ruleNoReservationForOrder)
	}

	if quantity > reservedForOrder {
		return domain.NewPreconditionError(ruleDeductExceedsReserved)
	}

	p.Emit(p, BuildStockDeducted(p.AggregateID(), orderID, quantity, now))

	return nil
}

// Restock adds newly arrived units to the on-hand count.
func (p *ProductStock) Restock(quantity int, now time.Time) error {
	if p.AggregateID() == "" {
		return domain.NewPreconditionError(ruleStockNotInitialized)
	}

	if quantity <= 0 {
		return domain.NewPreconditionError(ruleQuantityMustBePositive)
	}

	p.Emit(p, BuildStockRestocked(p.AggregateID(), quantity, now))

	return nil
}

// ApplyEvent folds one event into stock state. It is total: no validation, no
// errors, unknown event types ignored.
func (p *ProductStock) ApplyEvent(event domain.Event) {
	switch e := event.(type) {
	case StockInitialized:
		p.SetAggregateID(e.ProductID)
		p.productName = e.ProductName
		p.onHand = e.OnHand
		p.reservations = make(map[string]int)
	case StockReserved:
		p.reserved += e.Quantity
		if p.reservations == nil {
			p.reservations = make(map[string]int)
		}
		p.reservations[e.OrderID] += e.Quantity
	case StockDeducted:
		p.onHand -= e.Quantity
		p.reserved -= e.Quantity
		if remaining := p.reservations[e.OrderID] - e.Quantity; remaining > 0 {
			p.reservations[e.OrderID] = remaining
		} else {
			delete(p.reservations, e.OrderID)
		}
	case StockRestocked:
		p.onHand += e.Quantity
	}
}

var _ aggregate.Root = (*ProductStock)(nil)
