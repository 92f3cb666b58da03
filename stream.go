package eventstore

import (
	"context"
	"iter"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventStream is an immutable, lazily evaluated view of stored events.
// Every configuration method returns a new view (or the same one if the
// value did not change). Each call to Iterate queries the store again, so
// two iterations may observe different results if events were committed
// in between.
type EventStream interface {
	// WithMinimumSequenceNumber only yields events with a sequence number >= n
	WithMinimumSequenceNumber(n SequenceNumber) EventStream
	// WithMaximumSequenceNumber only yields events with a sequence number <= n
	WithMaximumSequenceNumber(n SequenceNumber) EventStream
	// Limit yields at most n events. n < 1 removes the limit.
	Limit(n int) EventStream
	// Backwards yields events in descending sequence number order
	Backwards() EventStream
	// Iterate yields the events in sequence number order. Iteration stops
	// after the first error.
	Iterate(ctx context.Context) iter.Seq2[EventEnvelope, error]
}

// queryStream runs a single query per iteration
type queryStream struct {
	db    *gorm.DB
	table string
	where []clause.Expression

	min       *SequenceNumber
	max       *SequenceNumber
	limit     int
	backwards bool
}

var _ EventStream = (*queryStream)(nil)

func newQueryStream(db *gorm.DB, table string, where []clause.Expression) *queryStream {
	return &queryStream{
		db:    db,
		table: table,
		where: where,
	}
}

func (s *queryStream) WithMinimumSequenceNumber(n SequenceNumber) EventStream {
	return s.withMinimum(n)
}

func (s *queryStream) WithMaximumSequenceNumber(n SequenceNumber) EventStream {
	return s.withMaximum(n)
}

func (s *queryStream) Limit(n int) EventStream { return s.withLimit(n) }

func (s *queryStream) Backwards() EventStream { return s.withBackwards() }

func (s *queryStream) withMinimum(n SequenceNumber) *queryStream {
	if s.min != nil && *s.min == n {
		return s
	}

	c := *s
	c.min = &n

	return &c
}

func (s *queryStream) withMaximum(n SequenceNumber) *queryStream {
	if s.max != nil && *s.max == n {
		return s
	}

	c := *s
	c.max = &n

	return &c
}

func (s *queryStream) withLimit(n int) *queryStream {
	if n < 1 {
		n = 0
	}

	if n == s.limit {
		return s
	}

	c := *s
	c.limit = n

	return &c
}

func (s *queryStream) withBackwards() *queryStream {
	if s.backwards {
		return s
	}

	c := *s
	c.backwards = true

	return &c
}

func (s *queryStream) Iterate(ctx context.Context) iter.Seq2[EventEnvelope, error] {
	return func(yield func(EventEnvelope, error) bool) {
		envelopes, err := s.fetch(ctx)
		if err != nil {
			yield(EventEnvelope{}, err)

			return
		}

		for _, env := range envelopes {
			if !yield(env, nil) {
				return
			}
		}
	}
}

func (s *queryStream) query(ctx context.Context) *gorm.DB {
	seq := clause.Column{Name: "sequencenumber"}

	exprs := append([]clause.Expression{}, s.where...)

	if s.min != nil {
		exprs = append(exprs, clause.Gte{Column: seq, Value: uint64(*s.min)})
	}

	if s.max != nil {
		exprs = append(exprs, clause.Lte{Column: seq, Value: uint64(*s.max)})
	}

	q := s.db.WithContext(ctx).Table(s.table)

	if len(exprs) > 0 {
		q = q.Clauses(clause.Where{Exprs: exprs})
	}

	q = q.Order(clause.OrderByColumn{Column: seq, Desc: s.backwards})

	if s.limit > 0 {
		q = q.Limit(s.limit)
	}

	return q
}

// fetch reads and decodes all matching records
func (s *queryStream) fetch(ctx context.Context) ([]EventEnvelope, error) {
	var records []Record

	if err := s.query(ctx).Find(&records).Error; err != nil {
		return nil, err
	}

	envelopes := make([]EventEnvelope, len(records))

	for i, rec := range records {
		env, err := DecodeRecord(rec)
		if err != nil {
			return nil, err
		}

		envelopes[i] = env
	}

	return envelopes, nil
}
