package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/baiirun/programme/internal/history"
)

// AppendAction adds an action to the audit trail. The trail is never
// trimmed.
func (db *DB) AppendAction(ctx context.Context, a history.Action) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO actions (id, project, actor, kind, task_id, description, reduced, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ProjectID, a.ActorID, string(a.Kind()), nullable(a.TaskID), a.Description, a.Reduced, string(payload), a.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// ListActions returns the project's most recent actions, newest first.
// limit <= 0 returns all of them.
func (db *DB) ListActions(ctx context.Context, project string, limit int) ([]history.Action, error) {
	query := `SELECT payload FROM actions WHERE project = ? ORDER BY seq DESC`
	args := []any{project}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []history.Action
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		var a history.Action
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("failed to decode action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ActionsForTask returns every action that touched taskID, oldest first.
func (db *DB) ActionsForTask(ctx context.Context, taskID string) ([]history.Action, error) {
	rows, err := db.QueryContext(ctx, `SELECT payload FROM actions WHERE task_id = ? ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []history.Action
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		var a history.Action
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("failed to decode action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
