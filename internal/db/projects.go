package db

import (
	"context"
	"fmt"
)

// EnsureProject registers a project name if it is not known yet.
func (db *DB) EnsureProject(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("project name is required")
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO projects (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("failed to ensure project: %w", err)
	}
	return nil
}

// ListProjects returns all project names.
func (db *DB) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, name)
	}
	return projects, rows.Err()
}
