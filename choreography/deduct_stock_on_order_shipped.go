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

const logMsgTargetStockMissingForDeduct = "stock not initialized for shipped product, deduction skipped"

// DeductStockOnOrderShipped deducts the shipped units from stock, fulfilling
// the reservation the order held.
type DeductStockOnOrderShipped struct {
	session   *session.Session
	publisher EventPublisher
	logger    eventlog.ContextualLogger
	clock     func() time.Time
}

// NewDeductStockOnOrderShipped creates the reaction. The logger may be nil.
func NewDeductStockOnOrderShipped(
	s *session.Session,
	publisher EventPublisher,
	logger eventlog.ContextualLogger,
) *DeductStockOnOrderShipped {
	return &DeductStockOnOrderShipped{
		session:   s,
		publisher: publisher,
		logger:    logger,
		clock:     time.Now,
	}
}

// EventType returns the trigger event type.
func (r *DeductStockOnOrderShipped) EventType() domain.EventTypeString {
	return orders.OrderShippedEventType
}

// Emits lists the event types the follow-on command can commit.
func (r *DeductStockOnOrderShipped) Emits() []domain.EventTypeString {
	return []domain.EventTypeString{inventory.StockDeductedEventType}
}

// React loads the shipped product's stock and deducts the shipped quantity.
// Missing stock is logged and skipped, never failed on.
func (r *DeductStockOnOrderShipped) React(ctx context.Context, envelope domain.Envelope) error {
	event, ok := envelope.Event.(orders.OrderShipped)
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

		if commandErr := stock.Deduct(event.Quantity, event.OrderID, r.clock()); commandErr != nil {
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
				r.logger.WarnContext(ctx, logMsgTargetStockMissingForDeduct,
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

var _ publish.Reaction = (*DeductStockOnOrderShipped)(nil)
