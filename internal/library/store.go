// internal/library/store.go
package library

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "doccenter/library"

// Action describes what a change did to an entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionReturn Action = "return"
	ActionRenew  Action = "renew"
)

// Change is a single entity mutation inside a commit.
type Change struct {
	Kind   Kind   `json:"kind"`
	Action Action `json:"action"`
	ID     string `json:"id"`
	Before any    `json:"before,omitempty"`
	After  any    `json:"after,omitempty"`
}

// Commit is published after every successful mutation.
type Commit struct {
	Version   uint64    `json:"version"`
	Operation string    `json:"operation"`
	At        time.Time `json:"at"`
	Changes   []Change  `json:"changes"`

	st *state
}

// Snapshot returns the full store state as of this commit.
func (c Commit) Snapshot() Snapshot {
	if c.st == nil {
		return Snapshot{}
	}
	return snapshotOf(c.st, c.At)
}

// Store is the single owner of every library collection. All mutations go
// through its operations; every read returns copies.
type Store struct {
	mu      sync.RWMutex
	state   *state
	version uint64

	pubMu   sync.Mutex
	subs    map[int]func(Commit)
	nextSub int

	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer
	ops    metric.Int64Counter
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for loan dates and status derivation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTracerProvider sets the tracer provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for operation counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Store) { s.ops = newOpsCounter(mp.Meter(instrumentationName)) }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:  newState(),
		subs:   make(map[int]func(Commit)),
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ops == nil {
		s.ops = newOpsCounter(otel.Meter(instrumentationName))
	}
	return s
}

func newOpsCounter(meter metric.Meter) metric.Int64Counter {
	counter, err := meter.Int64Counter("library.operations",
		metric.WithDescription("Library store operations by name and outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return counter
}

// Subscribe registers fn to receive every commit in order. fn runs on the
// mutating goroutine and must not call mutating store operations.
func (s *Store) Subscribe(fn func(Commit)) (cancel func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.pubMu.Lock()
		defer s.pubMu.Unlock()
		delete(s.subs, id)
	}
}

// Version returns the number of commits applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ExportState returns a copy of the whole store.
func (s *Store) ExportState(ctx context.Context) Snapshot {
	var snap Snapshot
	s.view(ctx, "export_state", func(st *state, now time.Time) {
		snap = snapshotOf(st, now)
	})
	return snap
}

// ImportState replaces the store contents with snap. The import is all or
// nothing: an inconsistent snapshot leaves the store untouched.
//
// Open loans and material loans whose target or borrower is missing from the
// snapshot are left out and logged at warn level.
func (s *Store) ImportState(ctx context.Context, snap Snapshot) error {
	var dropped map[Kind][]string
	err := s.mutate(ctx, "import_state", func(tx *txn) error {
		st, d, err := stateFromSnapshot(snap)
		if err != nil {
			return err
		}
		tx.st, dropped = st, d
		return nil
	})
	if err != nil {
		return err
	}
	for _, kind := range []Kind{KindLoan, KindMaterialLoan} {
		if ids := dropped[kind]; len(ids) > 0 {
			s.logger.WarnContext(ctx, "import dropped open loans with missing references",
				slog.String("kind", string(kind)),
				slog.Any("ids", ids),
			)
		}
	}
	return nil
}

type txn struct {
	st      *state
	now     time.Time
	changes []Change
}

func (tx *txn) record(kind Kind, action Action, id string, before, after any) {
	tx.changes = append(tx.changes, Change{Kind: kind, Action: action, ID: id, Before: before, After: after})
}

// mutate runs fn against a clone of the state and swaps it in only when fn succeeds.
func (s *Store) mutate(ctx context.Context, op string, fn func(tx *txn) error) error {
	ctx, span := s.tracer.Start(ctx, "library."+op)
	defer span.End()

	commit, err := s.apply(op, fn)
	if err != nil {
		s.finish(ctx, span, op, err)
		return err
	}
	s.publish(commit)

	span.SetAttributes(attribute.Int64("library.version", int64(commit.Version)))
	s.logger.DebugContext(ctx, "library mutation committed",
		slog.String("op", op),
		slog.Uint64("version", commit.Version),
		slog.Int("changes", len(commit.Changes)),
	)
	s.finish(ctx, span, op, nil)
	return nil
}

// apply swaps in the result of fn and takes pubMu before releasing mu so
// commits are published in version order. On success the caller must call
// publish, which releases pubMu.
func (s *Store) apply(op string, fn func(tx *txn) error) (Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{st: s.state.clone(), now: s.now()}
	if err := fn(tx); err != nil {
		return Commit{}, err
	}
	s.state = tx.st
	s.version++
	s.pubMu.Lock()
	return Commit{Version: s.version, Operation: op, At: tx.now, Changes: tx.changes, st: tx.st}, nil
}

func (s *Store) publish(commit Commit) {
	defer s.pubMu.Unlock()
	for _, fn := range s.subs {
		fn(commit)
	}
}

// view runs fn against the committed state under a read lock.
func (s *Store) view(ctx context.Context, op string, fn func(st *state, now time.Time)) {
	ctx, span := s.tracer.Start(ctx, "library."+op)
	defer span.End()

	s.mu.RLock()
	fn(s.state, s.now())
	s.mu.RUnlock()
	s.finish(ctx, span, op, nil)
}

// read is view for lookups that can fail.
func (s *Store) read(ctx context.Context, op string, fn func(st *state, now time.Time) error) error {
	ctx, span := s.tracer.Start(ctx, "library."+op)
	defer span.End()

	s.mu.RLock()
	err := fn(s.state, s.now())
	s.mu.RUnlock()
	s.finish(ctx, span, op, err)
	return err
}

func (s *Store) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := outcomeOf(err)
	if s.ops != nil {
		s.ops.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	if count, ok := DependentCount(err); ok {
		s.logger.InfoContext(ctx, "delete refused",
			slog.String("op", op),
			slog.Int("dependents", count),
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrHasActiveDependents):
		return "dependents"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
