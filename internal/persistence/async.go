// internal/persistence/async.go
package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"doccenter/internal/library"
)

const instrumentationName = "doccenter/persistence"

// Sink receives committed change sets. Persist may block; it runs on the
// dispatcher goroutine, never on the mutating caller.
type Sink interface {
	Name() string
	Persist(ctx context.Context, commit library.Commit) error
}

// Async fans commits out to sinks from a single goroutine. A full queue drops
// the commit; a failing sink is logged and counted. Neither is reported back
// to the operation that produced the commit.
type Async struct {
	sinks   []Sink
	queue   chan library.Commit
	timeout time.Duration
	logger  *slog.Logger

	failures metric.Int64Counter
	dropped  metric.Int64Counter

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// AsyncOption configures an Async dispatcher.
type AsyncOption func(*Async)

// WithBuffer sets the queue capacity.
func WithBuffer(n int) AsyncOption {
	return func(a *Async) { a.queue = make(chan library.Commit, n) }
}

// WithSinkTimeout bounds a single Persist call.
func WithSinkTimeout(d time.Duration) AsyncOption {
	return func(a *Async) { a.timeout = d }
}

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) { a.logger = logger }
}

func WithMeterProvider(mp metric.MeterProvider) AsyncOption {
	return func(a *Async) { a.instrument(mp.Meter(instrumentationName)) }
}

// NewAsync starts the dispatcher goroutine. Call Close to drain and stop it.
func NewAsync(sinks []Sink, opts ...AsyncOption) *Async {
	a := &Async{
		sinks:   sinks,
		queue:   make(chan library.Commit, 256),
		timeout: 30 * time.Second,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.failures == nil {
		a.instrument(otel.Meter(instrumentationName))
	}
	go a.run()
	return a
}

func (a *Async) instrument(meter metric.Meter) {
	var err error
	if a.failures, err = meter.Int64Counter("persistence.failures",
		metric.WithDescription("Sink writes that returned an error"),
	); err != nil {
		otel.Handle(err)
	}
	if a.dropped, err = meter.Int64Counter("persistence.dropped",
		metric.WithDescription("Commits dropped because the dispatch queue was full"),
	); err != nil {
		otel.Handle(err)
	}
}

// Attach subscribes the dispatcher to every commit of store.
func (a *Async) Attach(store *library.Store) (detach func()) {
	return store.Subscribe(a.Enqueue)
}

// Enqueue hands a commit to the dispatcher without blocking.
func (a *Async) Enqueue(commit library.Commit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- commit:
	default:
		a.dropped.Add(context.Background(), 1)
		a.logger.Warn("persistence queue full, commit dropped",
			slog.Uint64("version", commit.Version),
			slog.String("operation", commit.Operation),
		)
	}
}

func (a *Async) run() {
	defer close(a.done)
	for commit := range a.queue {
		for _, sink := range a.sinks {
			a.deliver(sink, commit)
		}
	}
}

func (a *Async) deliver(sink Sink, commit library.Commit) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := sink.Persist(ctx, commit); err != nil {
		a.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink.Name())))
		a.logger.Warn("persistence sink failed",
			slog.String("sink", sink.Name()),
			slog.Uint64("version", commit.Version),
			slog.String("operation", commit.Operation),
			slog.String("error", err.Error()),
		)
	}
}

// Close stops accepting commits and waits until the queue is drained or ctx
// expires.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
