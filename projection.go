package eventstore

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventLoader loads event streams
// This package offers EventStore as EventLoader implementation
type EventLoader interface {
	Load(StreamSelector, *EventStreamFilter) (EventStream, error)
}

// Projection represents a projection that should be able to handle
// projected events
type Projection func(EventEnvelope) error

// ProjectorOption configures a Projector
type ProjectorOption func(*Projector)

// WithProjectorSelector sets the stream the projector follows
// (AllStreams() by default) and an optional filter
func WithProjectorSelector(sel StreamSelector, filter *EventStreamFilter) ProjectorOption {
	return func(p *Projector) {
		p.selector = sel
		p.filter = filter
	}
}

// WithProjectorPollInterval sets how long the projector waits after it
// caught up (or after an error) before reading again
func WithProjectorPollInterval(d time.Duration) ProjectorOption {
	return func(p *Projector) {
		p.pollInterval = d
	}
}

// WithProjectorStart makes projections start at the given sequence number
func WithProjectorStart(n SequenceNumber) ProjectorOption {
	return func(p *Projector) {
		p.start = n
	}
}

// WithProjectorLogger sets the projector logger
func WithProjectorLogger(l *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		p.logger = l
	}
}

// NewProjector constructs a Projector
func NewProjector(l EventLoader, opts ...ProjectorOption) *Projector {
	p := Projector{
		loader:       l,
		selector:     AllStreams(),
		pollInterval: 100 * time.Millisecond,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(&p)
	}

	return &p
}

// Projector is an event projector which will follow an event stream
// (event store) and project events to each individual projection in an
// asynchronous manner. Every projection keeps its own position and is
// retried from the failed event after an error.
type Projector struct {
	loader       EventLoader
	selector     StreamSelector
	filter       *EventStreamFilter
	pollInterval time.Duration
	start        SequenceNumber
	projections  []Projection
	logger       *slog.Logger
}

// Add effectively registers a projection with the projector
// Make sure to add all of your projections before calling Run
func (p *Projector) Add(projections ...Projection) {
	p.projections = append(p.projections, projections...)
}

// Run will start the projector and block until ctx is done
func (p *Projector) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, projection := range p.projections {
		wg.Add(1)

		go func(projection Projection) {
			defer wg.Done()

			p.run(ctx, projection)
		}(projection)
	}

	wg.Wait()

	return nil
}

func (p *Projector) run(ctx context.Context, projection Projection) {
	next := p.start

	for {
		var err error

		next, err = p.CatchUp(ctx, projection, next)
		if err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "projector error",
				slog.Any("error", err),
				next.SlogAttr(),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}
	}
}

// CatchUp projects all events starting at sequence number from and
// returns the sequence number to continue with
func (p *Projector) CatchUp(ctx context.Context, projection Projection, from SequenceNumber) (SequenceNumber, error) {
	stream, err := p.loader.Load(p.selector, p.filter)
	if err != nil {
		return from, err
	}

	for env, err := range stream.WithMinimumSequenceNumber(from).Iterate(ctx) {
		if err != nil {
			return from, err
		}

		if err := projection(env); err != nil {
			return from, err
		}

		from = env.SequenceNumber + 1
	}

	return from, nil
}

// FlushAfter wraps the projection passed in and it calls
// the projection itself as new events come (as usual) in addition to calling
// the provided flush function periodically each time flush interval expires.
// The wrapper stops once ctx is done and then returns ctx.Err().
func FlushAfter(
	ctx context.Context,
	p Projection,
	flush func() error,
	flushInt time.Duration) Projection {
	var (
		mu  sync.Mutex
		err error
	)

	work := make(chan EventEnvelope)

	setErr := func(e error) {
		mu.Lock()
		defer mu.Unlock()

		err = e
	}

	go func() {
		t := time.NewTicker(flushInt)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-t.C:
				setErr(flush())

			case w := <-work:
				setErr(p(w))
			}
		}
	}()

	return func(data EventEnvelope) error {
		mu.Lock()
		e := err
		mu.Unlock()

		if e != nil {
			return e
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case work <- data:
			return nil
		}
	}
}
