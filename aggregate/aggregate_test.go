package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/eventflow-go/domain"
)

type tickHappened struct {
	ID string
}

func (e tickHappened) EventType() string              { return "TickHappened" }
func (e tickHappened) HasOccurredAt() time.Time       { return time.Time{} }
func (e tickHappened) PayloadToJSON() ([]byte, error) { return []byte(`{}`), nil }

type ticker struct {
	Base
	ticks int
}

func (c *ticker) Tick(id string) {
	c.Emit(c, tickHappened{ID: id})
}

func (c *ticker) ApplyEvent(event domain.Event) {
	switch e := event.(type) {
	case tickHappened:
		c.SetAggregateID(e.ID)
		c.ticks++
	}
}

func Test_Base_Emit_AppliesBeforeBuffering(t *testing.T) {
	c := &ticker{}

	c.Tick("t1")
	c.Tick("t1")

	assert.Equal(t, 2, c.ticks)
	assert.Equal(t, "t1", c.AggregateID())
	require.Len(t, c.UncommittedEvents(), 2)
	assert.True(t, c.HasUncommittedEvents())
}

func Test_Base_ClearUncommittedEvents_KeepsState(t *testing.T) {
	c := &ticker{}
	c.Tick("t1")

	c.ClearUncommittedEvents()

	assert.Empty(t, c.UncommittedEvents())
	assert.False(t, c.HasUncommittedEvents())
	assert.Equal(t, 1, c.ticks)
}

func Test_Base_VersionBookkeeping(t *testing.T) {
	c := &ticker{}
	assert.Equal(t, uint(0), c.Version())

	c.SetVersion(3)

	assert.Equal(t, uint(3), c.Version())
}

func Test_Base_ApplyIgnoresUnknownEvents(t *testing.T) {
	c := &ticker{}
	c.Tick("t1")

	c.ApplyEvent(unknownEvent{})

	assert.Equal(t, 1, c.ticks)
}

type unknownEvent struct{}

func (e unknownEvent) EventType() string              { return "UnknownEvent" }
func (e unknownEvent) HasOccurredAt() time.Time       { return time.Time{} }
func (e unknownEvent) PayloadToJSON() ([]byte, error) { return []byte(`{}`), nil }
