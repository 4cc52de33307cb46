// Package choreography wires the order and inventory contexts together through
// reactions: OrderPlaced reserves stock, StockReserved confirms the order's
// reservation, OrderShipped deducts the shipped units.
//
// Each reaction consumes a distinct event type and emits only event types that
// never lead back to its trigger, so the choreography graph is acyclic; the
// publisher proves that at registration time. Reactions re-seed the context
// with the triggering event's correlation id and event id before issuing
// follow-on commands, keeping every derived event traceable to the original
// request.
//
// A reaction whose target aggregate does not exist yet logs and returns nil:
// delivery across contexts is eventually consistent and may arrive before the
// target's own stream was created.
package choreography
