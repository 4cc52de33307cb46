package session_test

import (
	"context"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/eventflow-go/aggregate"
	"github.com/flowline/eventflow-go/domain"
	"github.com/flowline/eventflow-go/eventlog"
	"github.com/flowline/eventflow-go/eventlog/memoryengine"
	"github.com/flowline/eventflow-go/session"
)

const amountAddedEventType = "AmountAdded"

type amountAdded struct {
	CounterID  string              `json:"counterId"`
	Amount     int                 `json:"amount"`
	OccurredAt domain.OccurredAtTS `json:"occurredAt"`
}

func buildAmountAdded(counterID string, amount int, occurredAt time.Time) amountAdded {
	return amountAdded{
		CounterID:  counterID,
		Amount:     amount,
		OccurredAt: domain.ToOccurredAt(occurredAt),
	}
}

func (e amountAdded) EventType() string          { return amountAddedEventType }
func (e amountAdded) HasOccurredAt() time.Time   { return e.OccurredAt }
func (e amountAdded) PayloadToJSON() ([]byte, error) { return jsoniter.ConfigFastest.Marshal(e) }

func amountAddedFromJSON(payload []byte) (domain.Event, error) {
	event := new(amountAdded)
	if err := jsoniter.ConfigFastest.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return *event, nil
}

type counter struct {
	aggregate.Base
	total int
}

func (c *counter) Add(counterID string, amount int) {
	c.Emit(c, buildAmountAdded(counterID, amount, time.Now()))
}

func (c *counter) ApplyEvent(event domain.Event) {
	switch e := event.(type) {
	case amountAdded:
		c.SetAggregateID(e.CounterID)
		c.total += e.Amount
	}
}

func newTestSession(t *testing.T, options ...session.Option) (*session.Session, *memoryengine.EventLog) {
	t.Helper()

	registry := domain.NewRegistry()
	require.NoError(t, registry.Register(amountAddedEventType, amountAddedFromJSON))

	log := memoryengine.NewEventLog()

	s, err := session.New(log, registry, options...)
	require.NoError(t, err)

	return s, log
}

func Test_New_NilDependencies(t *testing.T) {
	registry := domain.NewRegistry()

	_, errNoLog := session.New(nil, registry)
	assert.ErrorIs(t, errNoLog, session.ErrNilEventLog)

	_, errNoRegistry := session.New(memoryengine.NewEventLog(), nil)
	assert.ErrorIs(t, errNoRegistry, session.ErrNilRegistry)
}

func Test_LoadOrCreate_EmptyStream_YieldsFreshRoot(t *testing.T) {
	s, _ := newTestSession(t)

	root, err := session.LoadOrCreate[counter](context.Background(), s, "counter-1")

	assert.NoError(t, err)
	assert.Equal(t, eventlog.StreamVersionUint(0), root.Version())
	assert.Empty(t, root.AggregateID())
}

func Test_Load_EmptyStream_NotFound(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := session.Load[counter](context.Background(), s, "counter-1")

	assert.ErrorIs(t, err, session.ErrNotFound)
}

func Test_Save_CommitsAndAdvancesVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	root, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)

	root.Add("counter-1", 3)
	root.Add("counter-1", 4)

	envelopes, saveErr := s.Save(ctx, "counter-1", root)

	assert.NoError(t, saveErr)
	assert.Len(t, envelopes, 2)
	assert.Equal(t, eventlog.StreamVersionUint(2), root.Version())
	assert.Empty(t, root.UncommittedEvents())
}

func Test_Save_NothingUncommitted_IsNoOp(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	root, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)

	envelopes, saveErr := s.Save(ctx, "counter-1", root)

	assert.NoError(t, saveErr)
	assert.Nil(t, envelopes)
}

func Test_Save_ThenLoad_ReplaysIdenticalState(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	root, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)
	root.Add("counter-1", 3)
	root.Add("counter-1", 4)
	_, saveErr := s.Save(ctx, "counter-1", root)
	require.NoError(t, saveErr)

	replayed, loadErr := session.Load[counter](ctx, s, "counter-1")

	assert.NoError(t, loadErr)
	assert.Equal(t, root.AggregateID(), replayed.AggregateID())
	assert.Equal(t, root.total, replayed.total)
	assert.Equal(t, root.Version(), replayed.Version())
}

func Test_Save_StampsCorrelationFromContext(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := domain.ContextWithCorrelation(context.Background(), "corr-1", "cause-1")

	root, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)
	root.Add("counter-1", 1)

	envelopes, saveErr := s.Save(ctx, "counter-1", root)

	require.NoError(t, saveErr)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "corr-1", envelopes[0].Metadata.CorrelationID)
	assert.Equal(t, "cause-1", envelopes[0].Metadata.CausationID)
	assert.NotEmpty(t, envelopes[0].Metadata.EventID)
}

func Test_Save_MintsCorrelationWhenContextCarriesNone(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	root, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)
	root.Add("counter-1", 1)
	root.Add("counter-1", 2)

	envelopes, saveErr := s.Save(ctx, "counter-1", root)

	require.NoError(t, saveErr)
	require.Len(t, envelopes, 2)
	assert.NotEmpty(t, envelopes[0].Metadata.CorrelationID)
	assert.Equal(t, envelopes[0].Metadata.CorrelationID, envelopes[1].Metadata.CorrelationID)
	assert.Empty(t, envelopes[0].Metadata.CausationID)
	assert.NotEqual(t, envelopes[0].Metadata.EventID, envelopes[1].Metadata.EventID)
}

func Test_Save_ConcurrentRootsConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	first, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)
	second, err := session.LoadOrCreate[counter](ctx, s, "counter-1")
	require.NoError(t, err)

	first.Add("counter-1", 1)
	second.Add("counter-1", 2)

	_, firstErr := s.Save(ctx, "counter-1", first)
	_, secondErr := s.Save(ctx, "counter-1", second)

	assert.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, eventlog.ErrConcurrencyConflict)
}

func Test_Load_SkipsUnknownEventTypes(t *testing.T) {
	ctx := context.Background()
	s, log := newTestSession(t)

	known := buildAmountAdded("counter-1", 5, time.Now())
	payloadJSON, err := known.PayloadToJSON()
	require.NoError(t, err)

	knownStored, err := eventlog.BuildStoredEventWithEmptyMetadata(amountAddedEventType, time.Now(), payloadJSON)
	require.NoError(t, err)
	unknownStored, err := eventlog.BuildStoredEventWithEmptyMetadata("SomethingFromTheFuture", time.Now(), []byte(`{"x": 1}`))
	require.NoError(t, err)

	require.NoError(t, log.Append(ctx, "counter-1", 0, knownStored, unknownStored))

	root, loadErr := session.Load[counter](ctx, s, "counter-1")

	assert.NoError(t, loadErr)
	assert.Equal(t, 5, root.total)
	assert.Equal(t, eventlog.StreamVersionUint(2), root.Version())
}
