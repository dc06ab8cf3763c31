package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/micvant/timecheck/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordMutations writes every entity row and appends the matching outbox
// rows inside one transaction. A failure rolls back the whole batch.
func (s *SQLiteStore) RecordMutations(ctx context.Context, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range muts {
		var (
			recordID string
			owner    string
			stamp    time.Time
			payload  []byte
		)

		switch m.Table {
		case model.TableTasks:
			if m.Task == nil {
				return fmt.Errorf("mutation for %s has no task", m.Table)
			}
			if err := upsertTaskTx(ctx, tx, m.Task); err != nil {
				return err
			}
			recordID, owner, stamp = m.Task.ID, m.Task.Owner, m.Task.ClientUpdatedAt
			payload, err = json.Marshal(m.Task)
		case model.TableTimeEntries:
			if m.Entry == nil {
				return fmt.Errorf("mutation for %s has no entry", m.Table)
			}
			if err := upsertEntryTx(ctx, tx, m.Entry); err != nil {
				return err
			}
			recordID, owner, stamp = m.Entry.ID, m.Entry.Owner, m.Entry.ClientUpdatedAt
			payload, err = json.Marshal(m.Entry)
		default:
			return fmt.Errorf("unknown table %q", m.Table)
		}
		if err != nil {
			return fmt.Errorf("marshaling payload for %s/%s: %w", m.Table, recordID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO outbox (id, tbl, record_id, op, payload, owner, client_updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), string(m.Table), recordID, string(m.Op),
			string(payload), owner, fmtTime(stamp),
		)
		if err != nil {
			return fmt.Errorf("appending outbox row for %s/%s: %w", m.Table, recordID, err)
		}
	}

	return tx.Commit()
}

// ApplySyncResult applies the authoritative response of a successful sync
// cycle as one transaction: server records overwrite local ones by id, the
// outbox rows that were pushed are cleared, and the cursor advances.
func (s *SQLiteStore) ApplySyncResult(ctx context.Context, owner string,
	tasks []model.Task, entries []model.TimeEntry, consumed []int64, cursor string) error {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range tasks {
		if err := upsertTaskTx(ctx, tx, &tasks[i]); err != nil {
			return err
		}
	}
	for i := range entries {
		if err := upsertEntryTx(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}

	// Delete only the rows snapshotted at the start of the cycle: rows
	// appended while the call was in flight stay queued for the next one.
	for _, seq := range consumed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM outbox WHERE owner = ? AND seq = ?", owner, seq,
		); err != nil {
			return fmt.Errorf("clearing outbox row %d: %w", seq, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		cursorKey(owner), cursor,
	)
	if err != nil {
		return fmt.Errorf("writing sync cursor: %w", err)
	}

	return tx.Commit()
}

// GetCursor returns the owner's sync cursor, or "" if no sync succeeded yet.
func (s *SQLiteStore) GetCursor(ctx context.Context, owner string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM meta WHERE key = ?", cursorKey(owner),
	)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sync cursor: %w", err)
	}
	return value, nil
}

// PurgeOrphans removes rows with an empty owner from every synchronized
// table. Ownerless rows cannot be pushed and must not survive locally.
func (s *SQLiteStore) PurgeOrphans(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "time_entries", "outbox"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE owner = ''", table),
		); err != nil {
			return fmt.Errorf("purging orphans from %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// cursorKey is the meta table key holding the owner's sync cursor.
func cursorKey(owner string) string {
	return "last_sync_at:" + owner
}

// fmtTime stores timestamps as ISO-8601 UTC text.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
