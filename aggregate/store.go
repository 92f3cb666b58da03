package aggregate

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/technoly/gormeventstore"
)

// ErrAggregateNotFound is returned when no events are stored for an aggregate
var ErrAggregateNotFound = errors.New("aggregate not found")

type ctxKey int

const (
	ctxMetaKey ctxKey = iota
	ctxCausationKey
	ctxCorrelationKey
)

// CtxWithMeta returns a context carrying metadata which is attached to
// every event saved with it
func CtxWithMeta(ctx context.Context, meta map[string]any) context.Context {
	return context.WithValue(ctx, ctxMetaKey, meta)
}

// CtxWithCausationID returns a context carrying the causation id of the
// events saved with it
func CtxWithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCausationKey, id)
}

// CtxWithCorrelationID returns a context carrying the correlation id of
// the events saved with it
func CtxWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrelationKey, id)
}

// EventStore represents event store
type EventStore interface {
	Commit(ctx context.Context, stream eventstore.StreamName, events eventstore.Events, expected eventstore.ExpectedVersion) (eventstore.CommitResult, error)
	Load(sel eventstore.StreamSelector, filter *eventstore.EventStreamFilter) (eventstore.EventStream, error)
}

// NewStore constructs new event sourced aggregate store
func NewStore[T Rooter](eventStore EventStore, enc eventstore.Encoder) *Store[T] {
	return &Store[T]{
		eventStore: eventStore,
		enc:        enc,
	}
}

// Store represents event sourced aggregate store
type Store[T Rooter] struct {
	eventStore EventStore
	enc        eventstore.Encoder
}

// Save commits the uncommitted aggregate events to the stream named after
// the aggregate id. The commit fails with eventstore.ErrConcurrency if
// the stream changed since the aggregate was rehydrated.
func (s *Store[T]) Save(ctx context.Context, aggregate T) error {
	domainEvents := aggregate.Events()

	if len(domainEvents) == 0 {
		return nil
	}

	meta, _ := ctx.Value(ctxMetaKey).(map[string]any)
	causationID, hasCausation := ctx.Value(ctxCausationKey).(string)
	correlationID, hasCorrelation := ctx.Value(ctxCorrelationKey).(string)

	events := make(eventstore.Events, 0, len(domainEvents))

	for _, evt := range domainEvents {
		encoded, err := s.enc.Encode(evt.E)
		if err != nil {
			return err
		}

		e := eventstore.Event{
			ID:   eventstore.EventID(evt.ID),
			Type: encoded.Type,
			Data: encoded.Data,
		}

		if len(evt.Meta) > 0 || len(meta) > 0 {
			m := make(eventstore.EventMetadata, len(evt.Meta)+len(meta))

			maps.Copy(m, evt.Meta)
			maps.Copy(m, meta)

			e.Metadata = m
		}

		switch {
		case evt.CausationEventID != nil:
			e = e.WithCausationID(eventstore.CausationID(*evt.CausationEventID))
		case hasCausation:
			e = e.WithCausationID(eventstore.CausationID(causationID))
		}

		switch {
		case evt.CorrelationEventID != nil:
			e = e.WithCorrelationID(eventstore.CorrelationID(*evt.CorrelationEventID))
		case hasCorrelation:
			e = e.WithCorrelationID(eventstore.CorrelationID(correlationID))
		}

		events = append(events, e)
	}

	expected := eventstore.NoStream()

	if v := aggregate.Version(); v > 0 {
		expected = eventstore.ExactVersion(eventstore.Version(v - 1))
	}

	_, err := s.eventStore.Commit(ctx, eventstore.StreamName(aggregate.StringID()), events, expected)

	return err
}

// ByID reads the aggregate stream and rehydrates root from it
func (s *Store[T]) ByID(ctx context.Context, id string, root T) error {
	stream, err := s.eventStore.Load(eventstore.StreamName(id), nil)
	if err != nil {
		return err
	}

	var events []Event

	for env, err := range stream.Iterate(ctx) {
		if err != nil {
			return err
		}

		evt, err := s.enc.Decode(&eventstore.EncodedEvt{
			Data: env.Event.Data,
			Type: env.Event.Type,
		})
		if err != nil {
			return fmt.Errorf("could not decode event %q of aggregate %q: %w", env.Event.ID, id, err)
		}

		e := Event{
			ID:         string(env.Event.ID),
			E:          evt,
			OccurredOn: env.RecordedAt,
			Meta:       env.Event.Metadata,
		}

		if env.Event.CausationID != nil {
			causationID := string(*env.Event.CausationID)
			e.CausationEventID = &causationID
		}

		if env.Event.CorrelationID != nil {
			correlationID := string(*env.Event.CorrelationID)
			e.CorrelationEventID = &correlationID
		}

		events = append(events, e)
	}

	if len(events) == 0 {
		return fmt.Errorf("%w: %s", ErrAggregateNotFound, id)
	}

	root.Rehydrate(root, events...)

	return nil
}
