package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yaxingson/mini-agent/internal/executor"
)

// ErrNotFound is reported when a run ID has no stored row.
var ErrNotFound = errors.New("run not found")

// SaveRun saves or updates a finished run and its task rows.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveRun(ctx context.Context, report *executor.Report) error {
	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Upsert run (insert or update on conflict)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, completed, failed, blocked, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			duration_ms = excluded.duration_ms,
			completed = excluded.completed,
			failed = excluded.failed,
			blocked = excluded.blocked,
			pending = excluded.pending
	`, report.RunID, report.StartedAt, report.Duration.Milliseconds(),
		report.Completed, report.Failed, report.Blocked, report.Pending)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	// Delete existing task rows for this run; dependency rows cascade
	_, err = tx.ExecContext(ctx, `DELETE FROM run_tasks WHERE run_id = ?`, report.RunID)
	if err != nil {
		return fmt.Errorf("failed to delete old task rows: %w", err)
	}

	// Insert task rows in plan order
	for position, task := range report.Tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_tasks (run_id, task_id, position, operation, raw_input,
				state, result, error, blocked_by, started_at, finished_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, task.ID, position, task.Operation, task.RawInput,
			task.State.String(), task.Result, task.Error, task.BlockedBy,
			nullableTime(task.StartedAt), nullableTime(task.FinishedAt),
			task.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
		}

		for _, depID := range task.DependsOn {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO run_task_deps (run_id, task_id, depends_on_id)
				VALUES (?, ?, ?)
			`, report.RunID, task.ID, depID)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, depID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRun retrieves a stored run by ID, including its task rows and their
// dependencies.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	run := &RunRecord{}
	var durationMs int64

	// Load run fields
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, completed, failed, blocked, pending
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.RunID, &run.StartedAt, &durationMs,
		&run.Completed, &run.Failed, &run.Blocked, &run.Pending)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond

	// Load dependencies for the whole run in one pass
	deps, err := s.loadRunDeps(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Load task rows in plan order
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, operation, raw_input, state, result, error, blocked_by,
			started_at, finished_at, duration_ms
		FROM run_tasks
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task TaskRecord
		var result, errStr, blockedBy sql.NullString
		var startedAt, finishedAt sql.NullTime
		var taskDurationMs int64

		err := rows.Scan(&task.TaskID, &task.Operation, &task.RawInput, &task.State,
			&result, &errStr, &blockedBy, &startedAt, &finishedAt, &taskDurationMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		task.Result = result.String
		task.Error = errStr.String
		task.BlockedBy = blockedBy.String
		if startedAt.Valid {
			t := startedAt.Time
			task.StartedAt = &t
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			task.FinishedAt = &t
		}
		task.Duration = time.Duration(taskDurationMs) * time.Millisecond
		task.DependsOn = deps[task.TaskID]

		run.Tasks = append(run.Tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return run, nil
}

// loadRunDeps returns the dependency lists of every task in a run.
func (s *SQLiteStore) loadRunDeps(ctx context.Context, runID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, depends_on_id
		FROM run_task_deps
		WHERE run_id = ?
		ORDER BY task_id, depends_on_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var taskID, depID string
		if err := rows.Scan(&taskID, &depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps[taskID] = append(deps[taskID], depID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return deps, nil
}

// ListRuns returns stored runs, most recent first. A non-positive limit
// returns all of them.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.started_at, r.duration_ms, r.completed, r.failed, r.blocked, r.pending,
			(SELECT COUNT(*) FROM run_tasks rt WHERE rt.run_id = r.id) AS total
		FROM runs r
		ORDER BY r.started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var durationMs int64

		err := rows.Scan(&run.RunID, &run.StartedAt, &durationMs,
			&run.Completed, &run.Failed, &run.Blocked, &run.Pending, &run.Total)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun removes a stored run, its task rows and its timeline. Task and
// dependency rows cascade from the runs row; event rows are unlinked and
// deleted explicitly.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// nullableTime converts an optional timestamp for storage.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
