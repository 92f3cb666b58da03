package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technoly/gormeventstore/aggregate"
)

type created struct {
	name  string
	email string
}

type nameUpdated struct {
	newName string
}

type missingHandler struct{}

type id string

func (i id) String() string { return string(i) }

type testAggregate struct {
	aggregate.Root[id]

	name  string
	email string
}

func (ta *testAggregate) Oncreated(event created) {
	ta.name = event.name
	ta.email = event.email
}

func (ta *testAggregate) OnnameUpdated(event nameUpdated) {
	ta.name = event.newName
}

func TestApplyEventShouldMutateAggregateAndAddEvent(t *testing.T) {
	var a testAggregate

	a.Rehydrate(&a)

	a.Apply(created{"john", "john@email.com"})
	a.Apply(nameUpdated{"max"})

	events := a.Events()

	assert.Len(t, events, 2)
	assert.Equal(t, created{"john", "john@email.com"}, events[0].E)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Equal(t, "max", a.name)
	assert.Equal(t, "john@email.com", a.email)
	assert.Equal(t, 0, a.Version())
}

func TestShouldInitAggregate(t *testing.T) {
	var a testAggregate

	a.Rehydrate(
		&a,
		aggregate.Event{E: created{"john", "john@email.com"}},
		aggregate.Event{E: nameUpdated{"max"}},
	)

	a.Apply(nameUpdated{"jane"})

	assert.Equal(t, "jane", a.name)
	assert.Equal(t, "john@email.com", a.email)
	assert.Equal(t, 2, a.Version())
	assert.Len(t, a.Events(), 1)
}

func TestShouldReturnEmptyEventsForFreshAggregate(t *testing.T) {
	var a testAggregate

	assert.Equal(t, []aggregate.Event{}, a.Events())
}

func TestShouldExposeStringID(t *testing.T) {
	var a testAggregate

	a.SetID("agg-1")

	assert.Equal(t, "agg-1", a.StringID())
}

func TestShouldPanicOnApplyWithNoRehydrate(t *testing.T) {
	var a testAggregate

	assert.PanicsWithError(t, aggregate.ErrAggregateRootNotRehydrated.Error(), func() {
		a.Apply(missingHandler{})
	})
}

func TestShouldPanicOnMissingHandler(t *testing.T) {
	var a testAggregate

	a.Rehydrate(&a)

	assert.PanicsWithError(t, aggregate.ErrMissingAggregateEventHandler.Error(), func() {
		a.Apply(missingHandler{})
	})
}

func TestShouldAcceptOnlyPointerOnRehydration(t *testing.T) {
	var a testAggregate

	assert.PanicsWithError(t, aggregate.ErrAggregateRootNotAPointer.Error(), func() {
		a.Rehydrate(a)
	})
}
