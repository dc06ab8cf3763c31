package store

import (
	"context"

	"github.com/micvant/timecheck/internal/model"
)

// Mutation is one entity change to record: the entity row write plus the
// matching outbox append. Exactly one of Task or Entry is set, matching
// Table.
type Mutation struct {
	Table model.Table
	Op    model.Op
	Task  *model.Task
	Entry *model.TimeEntry
}

// TaskFilter controls task queries. Tombstoned rows are hidden unless
// IncludeDeleted is set.
type TaskFilter struct {
	Owner          string
	IncludeDeleted bool
}

// EntryFilter controls time entry queries.
type EntryFilter struct {
	Owner          string
	TaskID         string // restrict to one task when non-empty
	Running        *bool  // nil (all), true (stopped_at IS NULL), false (stopped)
	IncludeDeleted bool
}

// Store is the persistence contract shared by the mutation recorder and
// the sync engine. Every method that touches more than one row is atomic:
// either all of its writes land or none do.
type Store interface {
	// RecordMutations persists a batch of entity writes together with
	// their outbox rows in a single transaction. No entity mutation is
	// ever visible without its outbox entry, and vice versa.
	RecordMutations(ctx context.Context, muts []Mutation) error

	GetTasks(ctx context.Context, f TaskFilter) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)

	GetTimeEntries(ctx context.Context, f EntryFilter) ([]model.TimeEntry, error)
	GetTimeEntryByID(ctx context.Context, id string) (*model.TimeEntry, error)

	// GetOutbox returns the owner's pending mutations in log-append order.
	GetOutbox(ctx context.Context, owner string) ([]model.OutboxRecord, error)

	// ApplySyncResult applies an authoritative server response in a single
	// transaction: upsert every returned record (the server's copy wins,
	// tombstones included), delete exactly the outbox rows identified by
	// consumed (rows appended during the sync call survive), and advance
	// the owner's cursor.
	ApplySyncResult(ctx context.Context, owner string, tasks []model.Task,
		entries []model.TimeEntry, consumed []int64, cursor string) error

	// GetCursor returns the owner's sync cursor, or "" before the first
	// successful sync.
	GetCursor(ctx context.Context, owner string) (string, error)

	// PurgeOrphans physically removes rows that carry no owner. Such rows
	// cannot be synchronized and would otherwise leak across accounts.
	PurgeOrphans(ctx context.Context) error

	Close() error
}
