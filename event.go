package eventstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StreamName identifies a single append-only stream, usually in the
// format "<BoundedContext>:<StreamName>"
type StreamName string

// String returns the stream name
func (s StreamName) String() string { return string(s) }

// EventID is the globally unique event id, usually a UUID
type EventID string

// EventType is the event type, usually in the format "<BoundedContext>:<EventType>"
type EventType string

// EventData is the opaque event payload (usually JSON)
type EventData string

// EventMetadata holds optional structured event metadata
type EventMetadata map[string]any

// CorrelationID groups related events across streams
type CorrelationID string

// CausationID references the event or command that caused an event
type CausationID string

// Event represents an immutable domain event that is to be committed
type Event struct {
	ID   EventID
	Type EventType
	Data EventData

	// Optional
	Metadata      EventMetadata
	CorrelationID *CorrelationID
	CausationID   *CausationID
}

// NewEvent constructs an event with a freshly generated (UUIDv7) id
func NewEvent(typ EventType, data EventData) (Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, fmt.Errorf("could not generate event id: %w", err)
	}

	return Event{
		ID:   EventID(id.String()),
		Type: typ,
		Data: data,
	}, nil
}

// WithMetadata returns a copy of the event carrying the given metadata
func (e Event) WithMetadata(meta EventMetadata) Event {
	e.Metadata = meta

	return e
}

// WithCorrelationID returns a copy of the event carrying the given correlation id
func (e Event) WithCorrelationID(id CorrelationID) Event {
	e.CorrelationID = &id

	return e
}

// WithCausationID returns a copy of the event carrying the given causation id
func (e Event) WithCausationID(id CausationID) Event {
	e.CausationID = &id

	return e
}

// Events is a batch of events committed to one stream in one go
type Events []Event

// EventEnvelope wraps a stored event together with its position in the
// event store. Envelopes are only ever produced by the store.
type EventEnvelope struct {
	Event          Event
	StreamName     StreamName
	Version        Version
	SequenceNumber SequenceNumber
	RecordedAt     time.Time
}

// CommitResult holds the version and sequence number of the last event
// written by a successful commit
type CommitResult struct {
	Version        Version
	SequenceNumber SequenceNumber
}
