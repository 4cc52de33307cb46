package inventory

import (
	"context"
	"time"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/idempotency"
	"github.com/flowline/eventflow-go/session"
)

const (
	ruleInitializeNeedsProduct = "product id must not be empty"
)

// EventPublisher is the outbound contract the inventory handlers need from the
// publishing side: dispatch committed envelopes to whoever reacts to them.
type EventPublisher interface {
	Publish(ctx context.Context, envelopes domain.Envelopes)
}

// InitializeStockCommand begins stock tracking for a product.
type InitializeStockCommand struct {
	ProductID      string
	ProductName    string
	OnHand         int
	IdempotencyKey string
}

// InitializeStockResponse is the result of initializing stock.
type InitializeStockResponse struct {
	ProductID string
}

// InitializeStockHandler executes InitializeStockCommand.
type InitializeStockHandler struct {
	session   *session.Session
	guard     *idempotency.Guard
	publisher EventPublisher
	clock     func() time.Time
}

// InitializeStockHandlerOption configures an InitializeStockHandler.
type InitializeStockHandlerOption func(*InitializeStockHandler)

// WithInitializeStockClock overrides the handler's time source.
func WithInitializeStockClock(clock func() time.Time) InitializeStockHandlerOption {
	return func(h *InitializeStockHandler) {
		h.clock = clock
	}
}

// NewInitializeStockHandler creates an InitializeStockHandler.
func NewInitializeStockHandler(
	s *session.Session,
	guard *idempotency.Guard,
	publisher EventPublisher,
	options ...InitializeStockHandlerOption,
) *InitializeStockHandler {
	h := &InitializeStockHandler{
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

// Handle initializes the product's stock at most once per idempotency key.
// A second initialization of the same product fails with a PreconditionError.
func (h *InitializeStockHandler) Handle(ctx context.Context, command InitializeStockCommand) (InitializeStockResponse, error) {
	if command.ProductID == "" {
		return InitializeStockResponse{}, domain.NewValidationError(ruleInitializeNeedsProduct)
	}

	return idempotency.Execute(ctx, h.guard, command.IdempotencyKey,
		func(ctx context.Context) (InitializeStockResponse, error) {
			return h.initializeStock(ctx, command)
		})
}

func (h *InitializeStockHandler) initializeStock(ctx context.Context, command InitializeStockCommand) (InitializeStockResponse, error) {
	streamID := StreamID(command.ProductID)

	var envelopes domain.Envelopes

	retryErr := session.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		stock, loadErr := session.LoadOrCreate[ProductStock](ctx, h.session, streamID)
		if loadErr != nil {
			return loadErr
		}

		if commandErr := stock.Initialize(command.ProductID, command.ProductName, command.OnHand, h.clock()); commandErr != nil {
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
		return InitializeStockResponse{}, retryErr
	}

	h.publisher.Publish(ctx, envelopes)

	return InitializeStockResponse{ProductID: command.ProductID}, nil
}
