package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yaxingson/mini-agent/internal/executor"
)

// TaskRecord is one task row of a stored run.
type TaskRecord struct {
	TaskID     string
	Operation  string
	RawInput   string
	DependsOn  []string
	State      string
	Result     string
	Error      string
	BlockedBy  string
	StartedAt  *time.Time
	FinishedAt *time.Time
	Duration   time.Duration
}

// RunRecord is a stored run with its tasks in plan order.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Completed int
	Failed    int
	Blocked   int
	Pending   int
	Tasks     []TaskRecord
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Completed int
	Failed    int
	Blocked   int
	Pending   int
}

// EventRecord is one timeline entry of a stored run.
type EventRecord struct {
	TaskID    string
	EventType string
	Detail    string
	Timestamp time.Time
}

// Store defines the persistence interface for run history.
type Store interface {
	// Run history
	SaveRun(ctx context.Context, report *executor.Report) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	DeleteRun(ctx context.Context, runID string) error

	// Run timeline
	SaveEvent(ctx context.Context, runID, taskID, eventType, detail string) error
	GetEvents(ctx context.Context, runID string) ([]EventRecord, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Open SQLite with connection string for WAL mode, busy timeout
	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Allow 2 connections: one for primary queries, one for subqueries
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	// Use file::memory:?cache=shared to allow multiple connections to the same in-memory DB
	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := "file::memory:?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Allow 2 connections for subquery parallelism
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
