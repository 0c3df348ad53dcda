package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"doccenter/internal/library"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Schema creates the journal table. Versions are unique per aggregate.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	aggregate_id TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_data JSONB NOT NULL,
	metadata JSONB,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (aggregate_id, version)
);
CREATE INDEX IF NOT EXISTS events_aggregate_type_idx ON events (aggregate_type, aggregate_id);
`

// Event is one entity change as stored in the journal.
type Event struct {
	ID            int64           `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Metadata      map[string]any  `json:"metadata"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Journal is an append-only Postgres log of every committed change, keyed
// by entity. It is a persistence sink; the store never reads from it.
type Journal struct {
	db     *sql.DB
	tracer trace.Tracer
}

type Option func(*Journal)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(j *Journal) { j.tracer = tp.Tracer("doccenter/eventstore") }
}

func NewJournal(db *sql.DB, opts ...Option) *Journal {
	j := &Journal{
		db:     db,
		tracer: otel.Tracer("doccenter/eventstore"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Open connects to Postgres and makes sure the schema exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return NewJournal(db, opts...), nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) Name() string { return "journal" }

// Persist appends each change of commit to its entity's stream.
func (j *Journal) Persist(ctx context.Context, commit library.Commit) error {
	for _, ch := range commit.Changes {
		event, err := eventFromChange(commit, ch)
		if err != nil {
			return err
		}
		version, err := j.GetCurrentVersion(ctx, ch.ID)
		if err != nil {
			return err
		}
		if err := j.AppendEvents(ctx, ch.ID, string(ch.Kind), version, []Event{event}); err != nil {
			return fmt.Errorf("append %s %s: %w", ch.Kind, ch.ID, err)
		}
	}
	return nil
}

func eventFromChange(commit library.Commit, ch library.Change) (Event, error) {
	body := ch.After
	if body == nil {
		body = ch.Before
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s change: %w", ch.Kind, err)
	}
	return Event{
		EventType: string(ch.Kind) + "." + string(ch.Action),
		EventData: data,
		Metadata: map[string]any{
			"commit_version": commit.Version,
			"operation":      commit.Operation,
		},
		CreatedAt: commit.At,
	}, nil
}

// AppendEvents atomically appends events with optimistic concurrency control.
func (j *Journal) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) (err error) {
	ctx, span := j.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("query current version: %w", err)
	}
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		version := expectedVersion + i + 1
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		createdAt := event.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		var eventID int64
		err = stmt.QueryRowContext(ctx,
			aggregateID,
			aggregateType,
			event.EventType,
			[]byte(event.EventData),
			metadataJSON,
			version,
			createdAt.UTC(),
		).Scan(&eventID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", eventID),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadEvents returns an entity's events from fromVersion on; toVersion 0
// means no upper bound.
func (j *Journal) LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE aggregate_id = $1
		AND version >= $2
	`
	args := []any{aggregateID, fromVersion}
	if toVersion > 0 {
		query += " AND version <= $3"
		args = append(args, toVersion)
	}
	query += " ORDER BY version ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version of an entity's stream, 0 when
// it has none.
func (j *Journal) GetCurrentVersion(ctx context.Context, aggregateID string) (int, error) {
	ctx, span := j.tracer.Start(ctx, "eventstore.get_version",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)),
	)
	defer span.End()

	var version int
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// StreamEvents pages through the whole journal in append order.
func (j *Journal) StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, fromID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query event stream: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var data, metadataJSON []byte
		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&data,
			&metadataJSON,
			&event.Version,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventData = json.RawMessage(data)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
