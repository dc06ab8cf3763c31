package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/micvant/timecheck/internal/model"
)

// upsertTaskTx overwrites the task row by id inside tx.
func upsertTaskTx(ctx context.Context, tx *sqlx.Tx, t *model.Task) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (
			id, owner, title, description,
			created_at, updated_at, deleted_at, client_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.Title, t.Description,
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
		fmtNullTime(t.DeletedAt), fmtTime(t.ClientUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", t.ID, err)
	}
	return nil
}

// GetTasks retrieves the owner's tasks ordered by creation time.
// Tombstoned rows are hidden unless the filter includes them.
func (s *SQLiteStore) GetTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	query := `
		SELECT id, owner, title, description,
		       created_at, updated_at, deleted_at, client_updated_at
		FROM tasks WHERE owner = ?`
	if !f.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryxContext(ctx, query, f.Owner)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// GetTaskByID retrieves a single task by its ID, tombstoned or not.
// Returns (nil, nil) when the row does not exist.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, owner, title, description,
		       created_at, updated_at, deleted_at, client_updated_at
		FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	task, err := scanTask(rows)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// scanTask scans a task row from a sqlx.Rows result set.
func scanTask(rows *sqlx.Rows) (model.Task, error) {
	var (
		task      model.Task
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		clientAt  string
	)

	err := rows.Scan(
		&task.ID, &task.Owner, &task.Title, &task.Description,
		&createdAt, &updatedAt, &deletedAt, &clientAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Task{}, err
	}
	if task.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return model.Task{}, err
	}
	if task.ClientUpdatedAt, err = parseTime(clientAt); err != nil {
		return model.Task{}, err
	}

	return task, nil
}
