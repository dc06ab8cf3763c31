package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/micvant/timecheck/internal/model"
)

// upsertEntryTx overwrites the time entry row by id inside tx.
func upsertEntryTx(ctx context.Context, tx *sqlx.Tx, e *model.TimeEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO time_entries (
			id, owner, task_id, started_at, stopped_at, comment,
			created_at, updated_at, deleted_at, client_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.TaskID,
		fmtTime(e.StartedAt), fmtNullTime(e.StoppedAt), e.Comment,
		fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt),
		fmtNullTime(e.DeletedAt), fmtTime(e.ClientUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting time entry %s: %w", e.ID, err)
	}
	return nil
}

// GetTimeEntries retrieves time entries matching the filter, newest
// started first.
func (s *SQLiteStore) GetTimeEntries(ctx context.Context, f EntryFilter) ([]model.TimeEntry, error) {
	query := `
		SELECT id, owner, task_id, started_at, stopped_at, comment,
		       created_at, updated_at, deleted_at, client_updated_at
		FROM time_entries WHERE owner = ?`
	args := []interface{}{f.Owner}

	if f.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
	if f.Running != nil {
		if *f.Running {
			query += " AND stopped_at IS NULL"
		} else {
			query += " AND stopped_at IS NOT NULL"
		}
	}
	if !f.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying time entries: %w", err)
	}
	defer rows.Close()

	var entries []model.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetTimeEntryByID retrieves a single time entry by its ID, tombstoned
// or not. Returns (nil, nil) when the row does not exist.
func (s *SQLiteStore) GetTimeEntryByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, owner, task_id, started_at, stopped_at, comment,
		       created_at, updated_at, deleted_at, client_updated_at
		FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting time entry %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// scanEntry scans a time entry row from a sqlx.Rows result set.
func scanEntry(rows *sqlx.Rows) (model.TimeEntry, error) {
	var (
		entry     model.TimeEntry
		startedAt string
		stoppedAt sql.NullString
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		clientAt  string
	)

	err := rows.Scan(
		&entry.ID, &entry.Owner, &entry.TaskID,
		&startedAt, &stoppedAt, &entry.Comment,
		&createdAt, &updatedAt, &deletedAt, &clientAt,
	)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("scanning time entry row: %w", err)
	}

	if entry.StartedAt, err = parseTime(startedAt); err != nil {
		return model.TimeEntry{}, err
	}
	if entry.StoppedAt, err = parseNullTime(stoppedAt); err != nil {
		return model.TimeEntry{}, err
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.TimeEntry{}, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.TimeEntry{}, err
	}
	if entry.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return model.TimeEntry{}, err
	}
	if entry.ClientUpdatedAt, err = parseTime(clientAt); err != nil {
		return model.TimeEntry{}, err
	}

	return entry, nil
}
