package inventory

import (
	"context"
	"time"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/idempotency"
	"github.com/flowline/eventflow-go/session"
)

const (
	ruleRestockNeedsProduct = "product id must not be empty"
)

// RestockCommand adds newly arrived units to a product's on-hand count.
type RestockCommand struct {
	ProductID      string
	Quantity       int
	IdempotencyKey string
}

// RestockResponse is the result of restocking.
type RestockResponse struct {
	ProductID string
}

// RestockHandler executes RestockCommand against existing stock.
type RestockHandler struct {
	session   *session.Session
	guard     *idempotency.Guard
	publisher EventPublisher
	clock     func() time.Time
}

// RestockHandlerOption configures a RestockHandler.
type RestockHandlerOption func(*RestockHandler)

// WithRestockClock overrides the handler's time source.
func WithRestockClock(clock func() time.Time) RestockHandlerOption {
	return func(h *RestockHandler) {
		h.clock = clock
	}
}

// NewRestockHandler creates a RestockHandler.
func NewRestockHandler(
	s *session.Session,
	guard *idempotency.Guard,
	publisher EventPublisher,
	options ...RestockHandlerOption,
) *RestockHandler {
	h := &RestockHandler{
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

// Handle restocks the product at most once per idempotency key. Missing stock
// fails with session.ErrNotFound.
func (h *RestockHandler) Handle(ctx context.Context, command RestockCommand) (RestockResponse, error) {
	if command.ProductID == "" {
		return RestockResponse{}, domain.NewValidationError(ruleRestockNeedsProduct)
	}

	return idempotency.Execute(ctx, h.guard, command.IdempotencyKey,
		func(ctx context.Context) (RestockResponse, error) {
			return h.restock(ctx, command)
		})
}

func (h *RestockHandler) restock(ctx context.Context, command RestockCommand) (RestockResponse, error) {
	streamID := StreamID(command.ProductID)

	var envelopes domain.Envelopes

	retryErr := session.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		stock, loadErr := session.Load[ProductStock](ctx, h.session, streamID)
		if loadErr != nil {
			return loadErr
		}

		if commandErr := stock.Restock(command.Quantity, h.clock()); commandErr != nil {
			return commandErr
		}

		saved, saveErr := h.session.Save(ctx, streamID, stock)
		if saveErr != nil {
			return saveErr
		}

		envelopes = saved

		return nil
	})
	if retryErr != nil {
		return RestockResponse{}, retryErr
	}

	h.publisher.Publish(ctx, envelopes)

	return RestockResponse{ProductID: command.ProductID}, nil
}
