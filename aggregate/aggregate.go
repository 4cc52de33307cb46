// Package aggregate provides the embeddable base for event-sourced aggregate roots.
//
// An aggregate derives all of its state from its events. Command methods validate
// against current state and call Emit with new events; Emit applies the event to the
// root first and then buffers it as uncommitted, so in-memory state after a command
// equals the state a fresh replay would produce.
package aggregate

import (
	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
)

// Applier applies a single event to aggregate state.
//
// ApplyEvent must be a total function: state transitions only, no validation, no
// errors. Events of types the aggregate does not know are ignored, which keeps
// replay forward compatible with events written by newer code. All rule checking
// belongs in command methods, before Emit.
type Applier interface {
	ApplyEvent(event domain.Event)
}

// Root is the contract every aggregate root fulfills, mostly by embedding Base.
// The session drives replay and commit through it.
type Root interface {
	Applier
	AggregateID() string
	SetAggregateID(id string)
	Version() eventlog.StreamVersionUint
	SetVersion(version eventlog.StreamVersionUint)
	UncommittedEvents() domain.Events
	ClearUncommittedEvents()
}

// Base carries the bookkeeping shared by all aggregate roots: identity, the
// version of the stream the state was replayed from, and the buffer of events
// emitted since. Embed it and implement ApplyEvent plus command methods.
type Base struct {
	id          string
	version     eventlog.StreamVersionUint
	uncommitted domain.Events
}

// AggregateID returns the aggregate's identity.
func (b *Base) AggregateID() string {
	return b.id
}

// SetAggregateID sets the aggregate's identity. The session calls it when
// creating a fresh root for a stream that has no events yet; ApplyEvent of the
// first event usually sets it during replay.
func (b *Base) SetAggregateID(id string) {
	b.id = id
}

// Version returns the stream version this aggregate's state was loaded at.
// It is the optimistic concurrency token for the next save.
func (b *Base) Version() eventlog.StreamVersionUint {
	return b.version
}

// SetVersion records the stream version after replay or a successful save.
func (b *Base) SetVersion(version eventlog.StreamVersionUint) {
	b.version = version
}

// UncommittedEvents returns the events emitted since the last load or save,
// in emission order.
func (b *Base) UncommittedEvents() domain.Events {
	return b.uncommitted
}

// ClearUncommittedEvents drops the uncommitted buffer after a successful save.
func (b *Base) ClearUncommittedEvents() {
	b.uncommitted = nil
}

// HasUncommittedEvents reports whether a save would append anything.
func (b *Base) HasUncommittedEvents() bool {
	return len(b.uncommitted) > 0
}

// Emit applies the event to the root and buffers it as uncommitted.
//
// Command methods call it as o.Emit(o, event): the root parameter routes the
// apply call to the embedding type, which Go embedding cannot do on its own.
func (b *Base) Emit(root Applier, event domain.Event) {
	root.ApplyEvent(event)
	b.uncommitted = append(b.uncommitted, event)
}
