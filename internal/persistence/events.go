package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveEvent appends one timeline entry for a run. Events arrive while the
// run is still executing, before the runs row exists, so run_events carries
// no foreign key.
func (s *SQLiteStore) SaveEvent(ctx context.Context, runID, taskID, eventType, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, task_id, event_type, detail)
		VALUES (?, ?, ?, ?)
	`, runID, taskID, eventType, detail)

	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// GetEvents retrieves the timeline of a run in insertion order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, event_type, detail, timestamp
		FROM run_events
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		var taskID, detail sql.NullString

		if err := rows.Scan(&taskID, &ev.EventType, &detail, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.TaskID = taskID.String
		ev.Detail = detail.String

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
