package orders

import (
	"context"
	"time"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/idempotency"
	"github.com/flowline/eventflow-go/session"
)

const (
	ruleShipOrderNeedsOrderID = "order id must not be empty"
)

// ShipOrderCommand ships a placed order.
type ShipOrderCommand struct {
	OrderID        string
	IdempotencyKey string
}

// ShipOrderResponse is the result of shipping an order.
type ShipOrderResponse struct {
	OrderID string
}

// ShipOrderHandler executes ShipOrderCommand against an existing order.
type ShipOrderHandler struct {
	session   *session.Session
	guard     *idempotency.Guard
	publisher EventPublisher
	clock     func() time.Time
}

// ShipOrderHandlerOption configures a ShipOrderHandler.
type ShipOrderHandlerOption func(*ShipOrderHandler)

// WithShipOrderClock overrides the handler's time source.
func WithShipOrderClock(clock func() time.Time) ShipOrderHandlerOption {
	return func(h *ShipOrderHandler) {
		h.clock = clock
	}
}

// NewShipOrderHandler creates a ShipOrderHandler.
func NewShipOrderHandler(
	s *session.Session,
	guard *idempotency.Guard,
	publisher EventPublisher,
	options ...ShipOrderHandlerOption,
) *ShipOrderHandler {
	h := &ShipOrderHandler{
		session:   s,
		guard:     guard,
		publisher: publisher,
		clock:     time.Now,
	}

	for _, option := range options {
		option(h)
	}

	return h
}

// Handle ships the order at most once per idempotency key. A missing order
// fails with session.ErrNotFound; an order that is not in status Placed fails
// with a PreconditionError.
func (h *ShipOrderHandler) Handle(ctx context.Context, command ShipOrderCommand) (ShipOrderResponse, error) {
	if command.OrderID == "" {
		return ShipOrderResponse{}, domain.NewValidationError(ruleShipOrderNeedsOrderID)
	}

	return idempotency.Execute(ctx, h.guard, command.IdempotencyKey,
		func(ctx context.Context) (ShipOrderResponse, error) {
			return h.shipOrder(ctx, command)
		})
}

func (h *ShipOrderHandler) shipOrder(ctx context.Context, command ShipOrderCommand) (ShipOrderResponse, error) {
	streamID := StreamID(command.OrderID)

	var envelopes domain.Envelopes

	retryErr := session.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		order, loadErr := session.Load[Order](ctx, h.session, streamID)
		if loadErr != nil {
			return loadErr
		}

		if commandErr := order.Ship(h.clock()); commandErr != nil {
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
		return ShipOrderResponse{}, retryErr
	}

	h.publisher.Publish(ctx, envelopes)

	return ShipOrderResponse{OrderID: command.OrderID}, nil
}
