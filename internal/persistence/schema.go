package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		blocked INTEGER NOT NULL,
		pending INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS run_tasks (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		operation TEXT NOT NULL,
		raw_input TEXT NOT NULL,
		state TEXT NOT NULL,
		result TEXT,
		error TEXT,
		blocked_by TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, task_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_tasks_run_position ON run_tasks(run_id, position);

	CREATE TABLE IF NOT EXISTS run_task_deps (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (run_id, task_id, depends_on_id),
		FOREIGN KEY (run_id, task_id) REFERENCES run_tasks(run_id, task_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		task_id TEXT,
		event_type TEXT NOT NULL,
		detail TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
