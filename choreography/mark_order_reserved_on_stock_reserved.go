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

const logMsgTargetOrderMissing = "order not found for stock reservation, confirmation skipped"

// MarkOrderReservedOnStockReserved confirms an order's reservation once the
// inventory context reserved the stock, moving the order from Pending to Placed.
type MarkOrderReservedOnStockReserved struct {
	session   *session.Session
	publisher EventPublisher
	logger    eventlog.ContextualLogger
	clock     func() time.Time
}

// NewMarkOrderReservedOnStockReserved creates the reaction. The logger may be nil.
func NewMarkOrderReservedOnStockReserved(
	s *session.Session,
	publisher EventPublisher,
	logger eventlog.ContextualLogger,
) *MarkOrderReservedOnStockReserved {
	return &MarkOrderReservedOnStockReserved{
		session:   s,
		publisher: publisher,
		logger:    logger,
		clock:     time.Now,
	}
}

// EventType returns the trigger event type.
func (r *MarkOrderReservedOnStockReserved) EventType() domain.EventTypeString {
	return inventory.StockReservedEventType
}

// Emits lists the event types the follow-on command can commit.
func (r *MarkOrderReservedOnStockReserved) Emits() []domain.EventTypeString {
	return []domain.EventTypeString{orders.OrderStockReservedEventType}
}

// React loads the order the reservation was made for and confirms it.
// A missing order is logged and skipped, never failed on.
func (r *MarkOrderReservedOnStockReserved) React(ctx context.Context, envelope domain.Envelope) error {
	event, ok := envelope.Event.(inventory.StockReserved)
	if !ok {
		return nil
	}

	ctx = domain.ContextWithCorrelation(ctx, envelope.Metadata.CorrelationID, envelope.Metadata.EventID)
	streamID := orders.StreamID(event.OrderID)

	var envelopes domain.Envelopes

	retryErr := session.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		order, loadErr := session.Load[orders.Order](ctx, r.session, streamID)
		if loadErr != nil {
			return loadErr
		}

		if commandErr := order.MarkReserved(r.clock()); commandErr != nil {
			return commandErr
		}

		saved, saveErr := r.session.Save(ctx, streamID, order)
		if saveErr != nil {
			return saveErr
		}

		envelopes = saved

		return nil
	})
	if retryErr != nil {
		if errors.Is(retryErr, session.ErrNotFound) {
			if r.logger != nil {
				r.logger.WarnContext(ctx, logMsgTargetOrderMissing,
					logAttrOrderID, event.OrderID,
					logAttrProductID, event.ProductID)
			}

			return nil
		}

		return retryErr
	}

	r.publisher.Publish(ctx, envelopes)

	return nil
}

var _ publish.Reaction = (*MarkOrderReservedOnStockReserved)(nil)
