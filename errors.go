package eventstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrency matches every *ConcurrencyError (use errors.Is)
	ErrConcurrency = errors.New("concurrency conflict")

	// ErrNoEvents is returned when a commit is attempted without events
	ErrNoEvents = errors.New("no events to commit")

	// ErrTransactionActive is returned when a commit is started while the
	// store already has a transaction open. This is a programming error:
	// one EventStore session must not be used by concurrent committers.
	ErrTransactionActive = errors.New("a transaction is active already, can't commit events")

	// ErrInvalidSequenceNumber is returned when the database did not
	// report a generated sequence number for an inserted event
	ErrInvalidSequenceNumber = errors.New("expected a generated sequence number")

	// ErrDuplicateEventID is returned when an event with the same id was stored before
	ErrDuplicateEventID = errors.New("event id exists")

	// ErrEventNotRegistered is returned by JSONEncoder.Decode for unknown event types
	ErrEventNotRegistered = errors.New("event type not registered")
)

// ConcurrencyError is returned by Commit when the expected version does
// not match, the retry budget for write races is used up or the database
// reports a deadlock or lock timeout. The transaction has always been rolled
// back. Callers should retry the business operation with a freshly
// computed expected version.
type ConcurrencyError struct {
	Reason string
	Err    error
}

func (e *ConcurrencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrConcurrency, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: %s", ErrConcurrency, e.Reason)
}

// Unwrap returns the underlying database error, if any
func (e *ConcurrencyError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConcurrency) hold for every ConcurrencyError
func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrency }

// DecodeError is returned while reading when a stored record cannot be
// decoded. It aborts the read.
type DecodeError struct {
	EventID EventID
	Field   string
	Value   string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("failed to parse %q value of %q in event %q", e.Field, e.Value, e.EventID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying parse error, if any
func (e *DecodeError) Unwrap() error { return e.Err }
