package choreography

import (
	"github.com/flowline/eventflow-go/eventlog"
	"github.com/flowline/eventflow-go/publish"
	"github.com/flowline/eventflow-go/session"
)

// RegisterReactions wires all cross-context reactions onto the publisher.
// The publisher doubles as the outbound publisher of each reaction, so
// follow-on events flow through the same registry.
func RegisterReactions(publisher *publish.Publisher, s *session.Session, logger eventlog.ContextualLogger) error {
	for _, reaction := range []publish.Reaction{
		NewReserveStockOnOrderPlaced(s, publisher, logger),
		NewMarkOrderReservedOnStockReserved(s, publisher, logger),
		NewDeductStockOnOrderShipped(s, publisher, logger),
	} {
		if err := publisher.Register(reaction); err != nil {
			return err
		}
	}

	return nil
}
