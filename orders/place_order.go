package orders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/idempotency"
	"github.com/flowline/eventflow-go/session"
)

const (
	rulePlaceOrderNeedsProduct = "product id must not be empty"
)

// EventPublisher is the outbound contract the order handlers need from the
// publishing side: dispatch committed envelopes to whoever reacts to them.
type EventPublisher interface {
	Publish(ctx context.Context, envelopes domain.Envelopes)
}

// PlaceOrderCommand places a new order for a product.
//
// IdempotencyKey is optional; when set, repeated calls with the same key within
// the guard's TTL return the first call's response without placing again.
type PlaceOrderCommand struct {
	ProductID      string
	Quantity       int
	IdempotencyKey string
}

// PlaceOrderResponse is the result of placing an order.
type PlaceOrderResponse struct {
	OrderID string
}

// PlaceOrderHandler executes PlaceOrderCommand: mint an order id, run the
// aggregate command, commit, publish.
type PlaceOrderHandler struct {
	session   *session.Session
	guard     *idempotency.Guard
	publisher EventPublisher
	clock     func() time.Time
	newID     func() string
}

// PlaceOrderHandlerOption configures a PlaceOrderHandler.
type PlaceOrderHandlerOption func(*PlaceOrderHandler)

// WithPlaceOrderClock overrides the handler's time source.
func WithPlaceOrderClock(clock func() time.Time) PlaceOrderHandlerOption {
	return func(h *PlaceOrderHandler) {
		h.clock = clock
	}
}

// WithPlaceOrderIDGenerator overrides the order id generator. The default mints UUID v4 values.
func WithPlaceOrderIDGenerator(newID func() string) PlaceOrderHandlerOption {
	return func(h *PlaceOrderHandler) {
		h.newID = newID
	}
}

// NewPlaceOrderHandler creates a PlaceOrderHandler.
func NewPlaceOrderHandler(
	s *session.Session,
	guard *idempotency.Guard,
	publisher EventPublisher,
	options ...PlaceOrderHandlerOption,
) *PlaceOrderHandler {
	h := &PlaceOrderHandler{
		session:   s,
		guard:     guard,
		publisher: publisher,
		clock:     time.Now,
		newID:     uuid.NewString,
	}

	for _, option := range options {
		option(h)
	}

	return h
}

// Handle places the order at most once per idempotency key.
//
// Publishing happens inside the guarded action, so a replayed response never
// re-triggers choreography: the side effects of a key happen exactly once.
func (h *PlaceOrderHandler) Handle(ctx context.Context, command PlaceOrderCommand) (PlaceOrderResponse, error) {
	if command.ProductID == "" {
		return PlaceOrderResponse{}, domain.NewValidationError(rulePlaceOrderNeedsProduct)
	}

	return idempotency.Execute(ctx, h.guard, command.IdempotencyKey,
		func(ctx context.Context) (PlaceOrderResponse, error) {
			return h.placeOrder(ctx, command)
		})
}

func (h *PlaceOrderHandler) placeOrder(ctx context.Context, command PlaceOrderCommand) (PlaceOrderResponse, error) {
	orderID := h.newID()
	streamID := StreamID(orderID)

	var envelopes domain.Envelopes

	// A fresh order id makes conflicts unlikely, but the stream is only claimed
	// at append time, so the command still runs under the standard retry.
	retryErr := session.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		order, loadErr := session.LoadOrCreate[Order](ctx, h.session, streamID)
		if loadErr != nil {
			return loadErr
		}

		if commandErr := order.Place(orderID, command.ProductID, command.Quantity, h.clock()); commandErr != nil {
			return commandErr
		}

		saved, saveErr := h.session.Save(ctx, streamID, order)
		if saveErr != nil {
			return saveErr
		}

		envelopes = saved

		return nil
	})
	if retryErr != nil {
		return PlaceOrderResponse{}, retryErr
	}

	h.publisher.Publish(ctx, envelopes)

	return PlaceOrderResponse{OrderID: orderID}, nil
}
