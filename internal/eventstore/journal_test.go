package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"doccenter/internal/library"
)

// setupTestDB connects to the Postgres described by the PG* variables and
// skips the test when none is reachable.
func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"),
		envOr("PGPORT", "5432"),
		envOr("PGUSER", "user"),
		envOr("PGPASSWORD", "password"),
		envOr("PGDATABASE", "testdb"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping journal tests: could not connect to postgres: %v", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestAppendAndLoadEvents(t *testing.T) {
	j := NewJournal(setupTestDB(t))
	ctx := context.Background()
	id := uuid.NewString()

	for i := range 3 {
		data, _ := json.Marshal(map[string]int{"n": i})
		require.NoError(t, j.AppendEvents(ctx, id, "task", i, []Event{{EventType: "task.update", EventData: data}}))
	}

	version, err := j.GetCurrentVersion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	events, err := j.LoadEvents(ctx, id, 2, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].Version)
	assert.Equal(t, 3, events[1].Version)
	assert.JSONEq(t, `{"n":2}`, string(events[1].EventData))

	bounded, err := j.LoadEvents(ctx, id, 1, 1)
	require.NoError(t, err)
	assert.Len(t, bounded, 1)
}

func TestAppendEventsRejectsStaleVersion(t *testing.T) {
	j := NewJournal(setupTestDB(t))
	ctx := context.Background()
	id := uuid.NewString()
	event := Event{EventType: "book.create", EventData: json.RawMessage(`{}`)}

	require.NoError(t, j.AppendEvents(ctx, id, "book", 0, []Event{event}))
	assert.ErrorIs(t, j.AppendEvents(ctx, id, "book", 0, []Event{event}), ErrConcurrencyConflict)
	assert.ErrorIs(t, j.AppendEvents(ctx, id, "book", -1, []Event{event}), ErrInvalidVersion)
}

func TestJournalPersistsStoreCommits(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	j := NewJournal(setupTestDB(t), WithTracerProvider(tp))
	ctx := context.Background()

	store := library.NewStore(library.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var commits []library.Commit
	store.Subscribe(func(c library.Commit) { commits = append(commits, c) })

	book, err := store.AddBook(ctx, library.Book{Title: "Dune", TotalCopies: 1})
	require.NoError(t, err)
	loan, err := store.CreateLoan(ctx, library.LoanInput{
		BookID:   book.ID,
		Borrower: library.Borrower{Name: "Walk-in"},
		DueDate:  time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	_, err = store.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	for _, c := range commits {
		require.NoError(t, j.Persist(ctx, c))
	}

	events, err := j.LoadEvents(ctx, loan.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "loan.create", events[0].EventType)
	assert.Equal(t, "loan.return", events[1].EventType)
	assert.Equal(t, "return_loan", events[1].Metadata["operation"])

	var returned library.Loan
	require.NoError(t, json.Unmarshal(events[1].EventData, &returned))
	assert.True(t, returned.Returned())

	bookEvents, err := j.LoadEvents(ctx, book.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, bookEvents, 3)
	var restored library.Book
	require.NoError(t, json.Unmarshal(bookEvents[2].EventData, &restored))
	assert.Equal(t, "return_loan", bookEvents[2].Metadata["operation"])
	assert.Equal(t, 1, restored.AvailableCopies)

	stream, err := j.StreamEvents(ctx, events[0].ID-1, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, stream)
	assert.Equal(t, events[0].ID, stream[0].ID)

	var appends int
	for _, span := range exporter.GetSpans() {
		if span.Name == "eventstore.append" {
			appends++
		}
	}
	assert.Positive(t, appends)
}

func TestEventFromChange(t *testing.T) {
	at := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	commit := library.Commit{Version: 9, Operation: "delete_task", At: at}
	change := library.Change{
		Kind:   library.KindTask,
		Action: library.ActionDelete,
		ID:     "t1",
		Before: library.Task{ID: "t1", Title: "Shelve returns"},
	}

	event, err := eventFromChange(commit, change)
	require.NoError(t, err)
	assert.Equal(t, "task.delete", event.EventType)
	assert.Equal(t, at, event.CreatedAt)
	assert.Equal(t, uint64(9), event.Metadata["commit_version"])

	var task library.Task
	require.NoError(t, json.Unmarshal(event.EventData, &task))
	assert.Equal(t, "Shelve returns", task.Title)
}
