// Package orders implements the order bounded context: the Order aggregate,
// its events, the command handlers, and an in-memory read model.
package orders

import (
	"time"

	"github.com/flowline/eventflow-go/aggregate"
	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
)

// Status is the order lifecycle state.
//
// Legal transitions: Pending -> Placed -> Shipped, terminal at Shipped.
// Placing is legal only before the order exists; confirming the reservation is
// legal only from Pending; shipping only from Placed. Transitions are enforced
// in command methods, never in ApplyEvent.
type Status string

const (
	// StatusPending is the state after placement, before the stock reservation is confirmed.
	StatusPending Status = "Pending"

	// StatusPlaced is the state after the inventory context confirmed the reservation.
	StatusPlaced Status = "Placed"

	// StatusShipped is the terminal state.
	StatusShipped Status = "Shipped"
)

const (
	streamPrefix = "order-"

	ruleQuantityMustBePositive   = "order quantity must be positive"
	ruleOrderAlreadyPlaced       = "order is already placed"
	ruleReservationNeedsPending  = "reservation can only be confirmed for a pending order"
	ruleShippingNeedsReservation = "order can only be shipped after its reservation was confirmed"
)

// StreamID derives the event stream id for an order. The prefix keeps order
// streams disjoint from streams of other contexts referencing the same id.
func StreamID(orderID string) eventlog.StreamIDString {
	return streamPrefix + orderID
}

// RegisterEvents binds all order context event types to the registry.
func RegisterEvents(registry *domain.Registry) error {
	registrations := map[domain.EventTypeString]domain.UnmarshalEventFunc{
		OrderPlacedEventType:        OrderPlacedFromJSON,
		OrderStockReservedEventType: OrderStockReservedFromJSON,
		OrderShippedEventType:       OrderShippedFromJSON,
	}

	for eventType, unmarshal := range registrations {
		if err := registry.Register(eventType, unmarshal); err != nil {
			return err
		}
	}

	return nil
}

// Order is the event-sourced aggregate root of the order context.
type Order struct {
	aggregate.Base
	productID string
	quantity  int
	status    Status
}

// ProductID returns the ordered product.
func (o *Order) ProductID() string {
	return o.productID
}

// Quantity returns the ordered quantity.
func (o *Order) Quantity() int {
	return o.quantity
}

// Status returns the current lifecycle state.
func (o *Order) Status() Status {
	return o.status
}

// Place accepts a new order. It is legal only before the order exists.
func (o *Order) Place(orderID string, productID string, quantity int, now time.Time) error {
	if o.AggregateID() != "" {
		return domain.NewPreconditionError(ruleOrderAlreadyPlaced)
	}

	if quantity <= 0 {
		return domain.NewPreconditionError(ruleQuantityMustBePositive)
	}

	o.Emit(o, BuildOrderPlaced(orderID, productID, quantity, now))

	return nil
}

// MarkReserved confirms the stock reservation, moving the order to Placed.
func (o *Order) MarkReserved(now time.Time) error {
	if o.status != StatusPending {
		return domain.NewPreconditionError(ruleReservationNeedsPending)
	}

	o.Emit(o, BuildOrderStockReserved(o.AggregateID(), now))

	return nil
}

// Ship ships the order, moving it to its terminal state.
func (o *Order) Ship(now time.Time) error {
	if o.status != StatusPlaced {
		return domain.NewPreconditionError(ruleShippingNeedsReservation)
	}

	o.Emit(o, BuildOrderShipped(o.AggregateID(), o.productID, o.quantity, now))

	return nil
}

// ApplyEvent folds one event into order state. It is total: no validation, no
// errors, unknown event types ignored.
func (o *Order) ApplyEvent(event domain.Event) {
	switch e := event.(type) {
	case OrderPlaced:
		o.SetAggregateID(e.OrderID)
		o.productID = e.ProductID
		o.quantity = e.Quantity
		o.status = StatusPending
	case OrderStockReserved:
		o.status = StatusPlaced
	case OrderShipped:
		o.status = StatusShipped
	}
}

var _ aggregate.Root = (*Order)(nil)
