// internal/persistence/sqlite.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"doccenter/internal/library"
)

const metaBucket = "meta"

type snapshotMeta struct {
	Version uint64    `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

// SQLiteSnapshot keeps the latest full store state in a single SQLite file,
// one JSON payload per collection.
type SQLiteSnapshot struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the snapshot database at path.
func OpenSQLite(path string) (*SQLiteSnapshot, error) {
	if path == "" {
		return nil, errors.New("sqlite snapshot path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc connections do not share in-flight transactions
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (bucket TEXT PRIMARY KEY, payload BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &SQLiteSnapshot{db: db, path: path}, nil
}

func (s *SQLiteSnapshot) Name() string { return "sqlite" }

// Path returns the database file location.
func (s *SQLiteSnapshot) Path() string { return s.path }

func (s *SQLiteSnapshot) Close() error { return s.db.Close() }

// Persist overwrites the stored state with the state as of commit.
func (s *SQLiteSnapshot) Persist(ctx context.Context, commit library.Commit) error {
	return s.Save(ctx, commit.Snapshot(), commit.Version)
}

// Save writes every bucket of snap in one transaction.
func (s *SQLiteSnapshot) Save(ctx context.Context, snap library.Snapshot, version uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := func(bucket string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket, payload) VALUES(?, ?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, payload,
		); err != nil {
			return fmt.Errorf("write %s: %w", bucket, err)
		}
		return nil
	}

	for _, b := range buckets(&snap) {
		if err := upsert(b.name, b.ptr); err != nil {
			return err
		}
	}
	if err := upsert(metaBucket, snapshotMeta{Version: version, SavedAt: time.Now().UTC()}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load reads the stored state. ok is false when nothing has been saved yet.
func (s *SQLiteSnapshot) Load(ctx context.Context) (snap library.Snapshot, version uint64, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return library.Snapshot{}, 0, false, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	targets := make(map[string]any)
	for _, b := range buckets(&snap) {
		targets[b.name] = b.ptr
	}
	var meta snapshotMeta
	targets[metaBucket] = &meta

	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return library.Snapshot{}, 0, false, fmt.Errorf("scan state: %w", err)
		}
		target, known := targets[bucket]
		if !known {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return library.Snapshot{}, 0, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		ok = true
	}
	if err := rows.Err(); err != nil {
		return library.Snapshot{}, 0, false, fmt.Errorf("iterate state: %w", err)
	}
	return snap, meta.Version, ok, nil
}

// Restore loads the stored state into store. It reports whether anything
// was restored.
func (s *SQLiteSnapshot) Restore(ctx context.Context, store *library.Store) (bool, error) {
	snap, _, ok, err := s.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := store.ImportState(ctx, snap); err != nil {
		return false, fmt.Errorf("import snapshot: %w", err)
	}
	return true, nil
}

type bucket struct {
	name string
	ptr  any
}

func buckets(snap *library.Snapshot) []bucket {
	return []bucket{
		{"categories", &snap.Categories},
		{"books", &snap.Books},
		{"book_issues", &snap.BookIssues},
		{"classes", &snap.Classes},
		{"participants", &snap.Participants},
		{"other_readers", &snap.OtherReaders},
		{"entities", &snap.Entities},
		{"materials", &snap.Materials},
		{"loans", &snap.Loans},
		{"material_loans", &snap.MaterialLoans},
		{"reading_sessions", &snap.ReadingSessions},
		{"tasks", &snap.Tasks},
		{"inventory_sessions", &snap.InventorySessions},
	}
}
