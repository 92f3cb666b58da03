package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultRetryInterval is the wait before the first retry of a commit
	// that lost a write race
	DefaultRetryInterval = 5 * time.Millisecond

	// DefaultMaxRetries is the number of retries before a commit fails.
	// With DefaultRetryInterval the waits add up to 1275ms.
	DefaultMaxRetries = 8
)

// coordinator states
const (
	stateIdle int32 = iota
	stateTransactionOpen
)

type retryPolicy struct {
	interval   time.Duration
	maxRetries int
}

// backoff returns the wait before the given (zero based) retry
func (p retryPolicy) backoff(retry int) time.Duration {
	return p.interval << retry
}

// Commit appends events to stream after verifying expected against the
// current stream version. The events receive consecutive versions in the
// given order. Events without an id are assigned a UUIDv7.
//
// If another writer commits to the same stream concurrently, the attempt
// is rolled back and retried with exponential backoff. A *ConcurrencyError
// is returned when the expected version does not match, the retries are
// used up or the database reports a deadlock or lock timeout. All other
// errors are returned unmodified.
func (es *EventStore) Commit(
	ctx context.Context,
	stream StreamName,
	events Events,
	expected ExpectedVersion) (CommitResult, error) {

	if len(stream) == 0 {
		return CommitResult{}, fmt.Errorf("stream name must be provided")
	}

	if len(events) == 0 {
		return CommitResult{}, ErrNoEvents
	}

	events, err := withEventIDs(events)
	if err != nil {
		return CommitResult{}, err
	}

	for retry := 0; ; retry++ {
		if err := es.ensureConnected(ctx); err != nil {
			return CommitResult{}, err
		}

		res, err := es.commitOnce(ctx, stream, events, expected)
		if err == nil {
			es.log.DebugContext(ctx, "events committed",
				slog.String("stream", stream.String()),
				slog.Int("events", len(events)),
				res.Version.SlogAttr(),
				res.SequenceNumber.SlogAttr(),
			)

			return res, nil
		}

		var concErr *ConcurrencyError
		if errors.As(err, &concErr) ||
			errors.Is(err, ErrTransactionActive) ||
			errors.Is(err, ErrInvalidSequenceNumber) {
			return CommitResult{}, err
		}

		switch es.dialect.classify(err) {
		case errorClassUniqueViolation:
			if retry >= es.retry.maxRetries {
				return CommitResult{}, &ConcurrencyError{
					Reason: fmt.Sprintf("failed after %d retry attempts", retry),
					Err:    err,
				}
			}

			wait := es.retry.backoff(retry)

			es.log.DebugContext(ctx, "commit lost write race, retrying",
				slog.String("stream", stream.String()),
				slog.Int("retry", retry+1),
				slog.Duration("wait", wait),
			)

			if err := es.sleep(ctx, wait); err != nil {
				return CommitResult{}, err
			}

		case errorClassLock:
			return CommitResult{}, &ConcurrencyError{
				Reason: "deadlock or lock wait timeout",
				Err:    err,
			}

		case errorClassDuplicateID:
			return CommitResult{}, fmt.Errorf("%w: %w", ErrDuplicateEventID, err)

		default:
			es.log.ErrorContext(ctx, "commit events error",
				slog.String("stream", stream.String()),
				slog.String("class", fmt.Sprintf("%T", err)),
				slog.String("message", err.Error()),
				slog.String("code", es.dialect.code(err)),
				slog.String("expected_version", expected.String()),
				slog.Int("attempt", retry+1),
			)

			return CommitResult{}, err
		}
	}
}

// commitOnce runs a single commit attempt in its own transaction
func (es *EventStore) commitOnce(
	ctx context.Context,
	stream StreamName,
	events Events,
	expected ExpectedVersion) (_ CommitResult, err error) {

	if !es.state.CompareAndSwap(stateIdle, stateTransactionOpen) {
		return CommitResult{}, ErrTransactionActive
	}

	defer es.state.Store(stateIdle)

	tx := es.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return CommitResult{}, tx.Error
	}

	defer func() {
		if err == nil {
			return
		}

		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			es.log.WarnContext(ctx, "rollback failed", slog.Any("error", rbErr))
		}
	}()

	current, err := es.streamVersion(tx, stream)
	if err != nil {
		return CommitResult{}, err
	}

	if err := expected.Verify(current); err != nil {
		return CommitResult{}, err
	}

	version := current.NextVersion()

	var last Record

	for _, evt := range events {
		rec, err := EncodeRecord(evt, stream, version, es.clock.Now())
		if err != nil {
			return CommitResult{}, err
		}

		if err := tx.Table(es.table).Create(&rec).Error; err != nil {
			return CommitResult{}, err
		}

		last = rec
		version = version.Next()
	}

	if last.SequenceNumber == 0 {
		return CommitResult{}, ErrInvalidSequenceNumber
	}

	if err := tx.Commit().Error; err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Version:        Version(last.Version),
		SequenceNumber: SequenceNumber(last.SequenceNumber),
	}, nil
}

func (es *EventStore) streamVersion(tx *gorm.DB, stream StreamName) (MaybeVersion, error) {
	var v sql.NullInt64

	err := tx.
		Table(es.table).
		Select("MAX(version)").
		Where(clause.Eq{Column: clause.Column{Name: "stream"}, Value: string(stream)}).
		Row().
		Scan(&v)
	if err != nil {
		return MaybeVersion{}, err
	}

	if !v.Valid {
		return NoVersion(), nil
	}

	return JustVersion(Version(v.Int64)), nil
}

func withEventIDs(events Events) (Events, error) {
	out := make(Events, len(events))

	for i, evt := range events {
		if evt.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}

			evt.ID = EventID(id.String())
		}

		out[i] = evt
	}

	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
