package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/eventflow-go/domain"
)

type testEvent struct {
	eventType  string
	occurredAt time.Time
}

func (e testEvent) EventType() string              { return e.eventType }
func (e testEvent) HasOccurredAt() time.Time       { return e.occurredAt }
func (e testEvent) PayloadToJSON() ([]byte, error) { return []byte(`{}`), nil }

func envelopeOf(eventType string) domain.Envelope {
	return domain.BuildEnvelope(
		testEvent{eventType: eventType, occurredAt: time.Now()},
		domain.BuildEventMetadata("evt-1", "corr-1", ""))
}

type fakeReaction struct {
	trigger string
	emits   []string
	reactFn func(ctx context.Context, envelope domain.Envelope) error
	calls   int
}

func (r *fakeReaction) EventType() domain.EventTypeString { return r.trigger }
func (r *fakeReaction) Emits() []domain.EventTypeString   { return r.emits }

func (r *fakeReaction) React(ctx context.Context, envelope domain.Envelope) error {
	r.calls++
	if r.reactFn != nil {
		return r.reactFn(ctx, envelope)
	}
	return nil
}

func Test_Publisher_DispatchesInRegistrationOrder(t *testing.T) {
	publisher := NewPublisher()
	var order []string

	first := &fakeReaction{trigger: "SomethingHappened", reactFn: func(_ context.Context, _ domain.Envelope) error {
		order = append(order, "first")
		return nil
	}}
	second := &fakeReaction{trigger: "SomethingHappened", reactFn: func(_ context.Context, _ domain.Envelope) error {
		order = append(order, "second")
		return nil
	}}

	require.NoError(t, publisher.Register(first))
	require.NoError(t, publisher.Register(second))

	publisher.Publish(context.Background(), domain.Envelopes{envelopeOf("SomethingHappened")})

	assert.Equal(t, []string{"first", "second"}, order)
}

func Test_Publisher_ReactionFailureDoesNotStopDispatch(t *testing.T) {
	publisher := NewPublisher()

	failing := &fakeReaction{trigger: "SomethingHappened", reactFn: func(_ context.Context, _ domain.Envelope) error {
		return errors.New("reaction blew up")
	}}
	following := &fakeReaction{trigger: "SomethingHappened"}

	require.NoError(t, publisher.Register(failing))
	require.NoError(t, publisher.Register(following))

	publisher.Publish(context.Background(), domain.Envelopes{envelopeOf("SomethingHappened")})

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, following.calls)
}

func Test_Publisher_UnregisteredEventType_IsNoOp(t *testing.T) {
	publisher := NewPublisher()
	reaction := &fakeReaction{trigger: "SomethingHappened"}
	require.NoError(t, publisher.Register(reaction))

	publisher.Publish(context.Background(), domain.Envelopes{envelopeOf("SomethingElseHappened")})

	assert.Equal(t, 0, reaction.calls)
}

func Test_Publisher_Register_InvalidReactions(t *testing.T) {
	publisher := NewPublisher()

	assert.ErrorIs(t, publisher.Register(nil), ErrNilReaction)
	assert.ErrorIs(t, publisher.Register(&fakeReaction{trigger: ""}), ErrEmptyTriggerEventType)
}

func Test_Publisher_Register_RejectsSelfEmit(t *testing.T) {
	publisher := NewPublisher()

	err := publisher.Register(&fakeReaction{trigger: "A", emits: []string{"A"}})

	assert.ErrorIs(t, err, ErrReactionCycle)
}

func Test_Publisher_Register_RejectsTransitiveCycle(t *testing.T) {
	publisher := NewPublisher()

	require.NoError(t, publisher.Register(&fakeReaction{trigger: "A", emits: []string{"B"}}))
	require.NoError(t, publisher.Register(&fakeReaction{trigger: "B", emits: []string{"C"}}))

	err := publisher.Register(&fakeReaction{trigger: "C", emits: []string{"A"}})

	assert.ErrorIs(t, err, ErrReactionCycle)
}

func Test_Publisher_Register_AcyclicChainIsAccepted(t *testing.T) {
	publisher := NewPublisher()

	assert.NoError(t, publisher.Register(&fakeReaction{trigger: "A", emits: []string{"B"}}))
	assert.NoError(t, publisher.Register(&fakeReaction{trigger: "B", emits: []string{"C"}}))
	assert.NoError(t, publisher.Register(&fakeReaction{trigger: "C", emits: nil}))
}

func Test_Sink_ConsumesWithoutEmitting(t *testing.T) {
	publisher := NewPublisher()
	var applied []string

	sink := NewSink("SomethingHappened", func(envelope domain.Envelope) {
		applied = append(applied, envelope.Event.EventType())
	})

	require.NoError(t, publisher.Register(sink))

	// A sink is a leaf: registering a reaction emitting the sink's event type
	// afterwards must not be considered a cycle.
	require.NoError(t, publisher.Register(&fakeReaction{trigger: "Origin", emits: []string{"SomethingHappened"}}))

	publisher.Publish(context.Background(), domain.Envelopes{envelopeOf("SomethingHappened")})

	assert.Equal(t, []string{"SomethingHappened"}, applied)
}
