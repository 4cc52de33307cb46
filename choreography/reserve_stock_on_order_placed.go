package choreography

import (
	"context"
	"errors"
	"time"

	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
	"github.com/flowline/eventflow-go/inventory"
	"github.com/flowline/eventflow-go/orders"
	"github.com/flowline/eventflow-go/publish"
	"github.com/flowline/eventflow-go/session"
)

const (
	logMsgTargetStockMissing = "stock not initialized for ordered product, reservation skipped"
	logAttrProductID         = "product_id"
	logAttrOrderID           = "order_id"
)

// EventPublisher is the outbound contract reactions use to publish their own
// committed events, continuing the choreography chain.
type EventPublisher interface {
	Publish(ctx context.Context, envelopes domain.Envelopes)
}

// ReserveStockOnOrderPlaced reserves stock for every placed order.
type ReserveStockOnOrderPlaced struct {
	session   *session.Session
	publisher EventPublisher
	logger    eventlog.ContextualLogger
	clock     func() time.Time
}

// NewReserveStockOnOrderPlaced creates the reaction. The logger may be nil.
func NewReserveStockOnOrderPlaced(
	s *session.Session,
	publisher EventPublisher,
	logger eventlog.ContextualLogger,
) *ReserveStockOnOrderPlaced {
	return &ReserveStockOnOrderPlaced{
		session:   s,
		publisher: publisher,
		logger:    logger,
		clock:     time.Now,
	}
}

// EventType returns the trigger event type.
func (r *ReserveStockOnOrderPlaced) EventType() domain.EventTypeString {
	return orders.OrderPlacedEventType
}

// Emits lists the event types the follow-on command can commit.
func (r *ReserveStockOnOrderPlaced) Emits() []domain.EventTypeString {
	return []domain.EventTypeString{inventory.StockReservedEventType}
}

// React loads the ordered product's stock and reserves the ordered quantity.
// Missing stock is logged and skipped, never failed on.
func (r *ReserveStockOnOrderPlaced) React(ctx context.Context, envelope domain.Envelope) error {
	event, ok := envelope.Event.(orders.OrderPlaced)
	if !ok {
		return nil
	}

	ctx = domain.ContextWithCorrelation(ctx, envelope.Metadata.CorrelationID, envelope.Metadata.EventID)
	streamID := inventory.StreamID(event.ProductID)

	var envelopes domain.Envelopes

	retryErr := session.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		stock, loadErr := session.Load[inventory.ProductStock](ctx, r.session, streamID)
		if loadErr != nil {
			return loadErr
		}

		if commandErr := stock.Reserve(event.Quantity, event.OrderID, r.clock()); commandErr != nil {
			return commandErr
		}

		saved, saveErr := r.session.Save(ctx, streamID, stock)
		if saveErr != nil {
			return saveErr
		}

		envelopes = saved

		return nil
	})
	if retryErr != nil {
		if errors.Is(retryErr, session.ErrNotFound) {
			if r.logger != nil {
				r.logger.WarnContext(ctx, logMsgTargetStockMissing,
					logAttrProductID, event.ProductID,
					logAttrOrderID, event.OrderID)
			}

			return nil
		}

		return retryErr
	}

	r.publisher.Publish(ctx, envelopes)

	return nil
}

var _ publish.Reaction = (*ReserveStockOnOrderPlaced)(nil)
