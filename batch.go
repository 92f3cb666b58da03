package eventstore

import (
	"context"
	"iter"
)

// DefaultBatchSize is the number of records fetched per page while iterating
const DefaultBatchSize = 100

// batchStream pages through the underlying query. Consumers observe a
// single ordered sequence with the bounds and limit of the wrapped view.
type batchStream struct {
	inner     *queryStream
	batchSize int
	probe     func(context.Context) error
}

var _ EventStream = (*batchStream)(nil)

func newBatchStream(inner *queryStream, batchSize int, probe func(context.Context) error) *batchStream {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	return &batchStream{
		inner:     inner,
		batchSize: batchSize,
		probe:     probe,
	}
}

func (b *batchStream) wrap(inner *queryStream) EventStream {
	if inner == b.inner {
		return b
	}

	c := *b
	c.inner = inner

	return &c
}

func (b *batchStream) WithMinimumSequenceNumber(n SequenceNumber) EventStream {
	return b.wrap(b.inner.withMinimum(n))
}

func (b *batchStream) WithMaximumSequenceNumber(n SequenceNumber) EventStream {
	return b.wrap(b.inner.withMaximum(n))
}

func (b *batchStream) Limit(n int) EventStream { return b.wrap(b.inner.withLimit(n)) }

func (b *batchStream) Backwards() EventStream { return b.wrap(b.inner.withBackwards()) }

func (b *batchStream) Iterate(ctx context.Context) iter.Seq2[EventEnvelope, error] {
	return func(yield func(EventEnvelope, error) bool) {
		if b.probe != nil {
			if err := b.probe(ctx); err != nil {
				yield(EventEnvelope{}, err)

				return
			}
		}

		page := b.inner
		remaining := b.inner.limit

		for {
			size := b.batchSize
			if remaining > 0 && remaining < size {
				size = remaining
			}

			envelopes, err := page.withLimit(size).fetch(ctx)
			if err != nil {
				yield(EventEnvelope{}, err)

				return
			}

			for _, env := range envelopes {
				if !yield(env, nil) {
					return
				}
			}

			if len(envelopes) < size {
				return
			}

			if remaining > 0 {
				remaining -= len(envelopes)
				if remaining == 0 {
					return
				}
			}

			last := envelopes[len(envelopes)-1].SequenceNumber

			if page.backwards {
				if last == 0 {
					return
				}

				page = page.withMaximum(last - 1)

				continue
			}

			page = page.withMinimum(last + 1)
		}
	}
}
