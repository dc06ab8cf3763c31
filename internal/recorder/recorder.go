// Package recorder is the single write path for tasks and time entries.
// Every mutation it performs is an atomic pair: the entity row write and
// an outbox append carrying the same snapshot. Writing to the store
// through any other path breaks the sync engine's bookkeeping.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/micvant/timecheck/internal/model"
	"github.com/micvant/timecheck/internal/store"
)

var (
	// ErrNotFound is returned when the referenced record does not exist
	// for the given owner.
	ErrNotFound = errors.New("record not found")

	// ErrTombstoned is returned when a mutation targets a soft-deleted
	// record. Tombstones are terminal: there is no un-delete path.
	ErrTombstoned = errors.New("record is deleted")

	// ErrNotRunning is returned when stopping an entry whose timer is
	// already stopped.
	ErrNotRunning = errors.New("time entry is not running")
)

// Recorder wraps every create/update/delete of a Task or TimeEntry in a
// local write plus an outbox append, atomically.
type Recorder struct {
	store store.Store

	// Now supplies mutation timestamps; replaceable in tests.
	Now func() time.Time
}

// New returns a Recorder writing through the given store.
func New(s store.Store) *Recorder {
	return &Recorder{store: s, Now: model.Now}
}

// CreateTask records a new task with a client-generated id.
func (r *Recorder) CreateTask(ctx context.Context, owner, title, description string) (*model.Task, error) {
	now := r.Now()
	task := &model.Task{
		ID:              model.NewID(),
		Owner:           owner,
		Title:           strings.TrimSpace(title),
		Description:     strings.TrimSpace(description),
		CreatedAt:       now,
		UpdatedAt:       now,
		ClientUpdatedAt: now,
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	err := r.store.RecordMutations(ctx, []store.Mutation{
		{Table: model.TableTasks, Op: model.OpUpsert, Task: task},
	})
	if err != nil {
		return nil, fmt.Errorf("recording task create: %w", err)
	}
	return task, nil
}

// UpdateTask records new title/description for an existing task.
func (r *Recorder) UpdateTask(ctx context.Context, owner, taskID, title, description string) (*model.Task, error) {
	task, err := r.ownedTask(ctx, owner, taskID)
	if err != nil {
		return nil, err
	}

	now := r.Now()
	task.Title = strings.TrimSpace(title)
	task.Description = strings.TrimSpace(description)
	task.UpdatedAt = now
	task.ClientUpdatedAt = now
	if err := task.Validate(); err != nil {
		return nil, err
	}

	err = r.store.RecordMutations(ctx, []store.Mutation{
		{Table: model.TableTasks, Op: model.OpUpsert, Task: task},
	})
	if err != nil {
		return nil, fmt.Errorf("recording task update: %w", err)
	}
	return task, nil
}

// DeleteTask tombstones a task. The row stays in place so the deletion
// can propagate through sync.
func (r *Recorder) DeleteTask(ctx context.Context, owner, taskID string) error {
	task, err := r.ownedTask(ctx, owner, taskID)
	if err != nil {
		return err
	}

	now := r.Now()
	task.DeletedAt = &now
	task.UpdatedAt = now
	task.ClientUpdatedAt = now

	err = r.store.RecordMutations(ctx, []store.Mutation{
		{Table: model.TableTasks, Op: model.OpDelete, Task: task},
	})
	if err != nil {
		return fmt.Errorf("recording task delete: %w", err)
	}
	return nil
}

// StartTimer opens a new running entry against the task. At most one
// entry per task may be running: any entry still open is stopped in the
// same transaction before the new one starts.
func (r *Recorder) StartTimer(ctx context.Context, owner, taskID, comment string) (*model.TimeEntry, error) {
	if _, err := r.ownedTask(ctx, owner, taskID); err != nil {
		return nil, err
	}

	running := true
	open, err := r.store.GetTimeEntries(ctx, store.EntryFilter{
		Owner:   owner,
		TaskID:  taskID,
		Running: &running,
	})
	if err != nil {
		return nil, fmt.Errorf("checking running entries: %w", err)
	}

	now := r.Now()
	var muts []store.Mutation
	for i := range open {
		stopped := stopEntry(open[i], now)
		muts = append(muts, store.Mutation{
			Table: model.TableTimeEntries, Op: model.OpUpsert, Entry: &stopped,
		})
	}

	entry := &model.TimeEntry{
		ID:              model.NewID(),
		Owner:           owner,
		TaskID:          taskID,
		StartedAt:       now,
		Comment:         strings.TrimSpace(comment),
		CreatedAt:       now,
		UpdatedAt:       now,
		ClientUpdatedAt: now,
	}
	muts = append(muts, store.Mutation{
		Table: model.TableTimeEntries, Op: model.OpUpsert, Entry: entry,
	})

	if err := r.store.RecordMutations(ctx, muts); err != nil {
		return nil, fmt.Errorf("recording timer start: %w", err)
	}
	return entry, nil
}

// StopTimer closes a running entry.
func (r *Recorder) StopTimer(ctx context.Context, owner, entryID string) (*model.TimeEntry, error) {
	entry, err := r.ownedEntry(ctx, owner, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Running() {
		return nil, ErrNotRunning
	}

	stopped := stopEntry(*entry, r.Now())
	err = r.store.RecordMutations(ctx, []store.Mutation{
		{Table: model.TableTimeEntries, Op: model.OpUpsert, Entry: &stopped},
	})
	if err != nil {
		return nil, fmt.Errorf("recording timer stop: %w", err)
	}
	return &stopped, nil
}

// ClearTaskTime tombstones every entry of the task in one transaction,
// closing running timers as it goes. A task with no entries is a no-op.
func (r *Recorder) ClearTaskTime(ctx context.Context, owner, taskID string) error {
	entries, err := r.store.GetTimeEntries(ctx, store.EntryFilter{
		Owner:  owner,
		TaskID: taskID,
	})
	if err != nil {
		return fmt.Errorf("listing task entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	now := r.Now()
	muts := make([]store.Mutation, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if e.StoppedAt == nil {
			stopAt := now
			e.StoppedAt = &stopAt
		}
		e.DeletedAt = &now
		e.UpdatedAt = now
		e.ClientUpdatedAt = now
		muts = append(muts, store.Mutation{
			Table: model.TableTimeEntries, Op: model.OpDelete, Entry: &e,
		})
	}

	if err := r.store.RecordMutations(ctx, muts); err != nil {
		return fmt.Errorf("recording time clear: %w", err)
	}
	return nil
}

// SweepRunning stops every running entry for the owner. Used on logout
// so no timer keeps accumulating against an account nobody is watching.
func (r *Recorder) SweepRunning(ctx context.Context, owner string) (int, error) {
	running := true
	open, err := r.store.GetTimeEntries(ctx, store.EntryFilter{
		Owner:   owner,
		Running: &running,
	})
	if err != nil {
		return 0, fmt.Errorf("listing running entries: %w", err)
	}
	if len(open) == 0 {
		return 0, nil
	}

	now := r.Now()
	muts := make([]store.Mutation, 0, len(open))
	for i := range open {
		stopped := stopEntry(open[i], now)
		muts = append(muts, store.Mutation{
			Table: model.TableTimeEntries, Op: model.OpUpsert, Entry: &stopped,
		})
	}

	if err := r.store.RecordMutations(ctx, muts); err != nil {
		return 0, fmt.Errorf("recording running sweep: %w", err)
	}
	return len(muts), nil
}

// ownedTask loads a task and enforces ownership and tombstone terminality.
func (r *Recorder) ownedTask(ctx context.Context, owner, taskID string) (*model.Task, error) {
	task, err := r.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", taskID, err)
	}
	if task == nil || task.Owner != owner {
		return nil, ErrNotFound
	}
	if task.Deleted() {
		return nil, ErrTombstoned
	}
	return task, nil
}

// ownedEntry loads a time entry and enforces ownership and tombstone
// terminality.
func (r *Recorder) ownedEntry(ctx context.Context, owner, entryID string) (*model.TimeEntry, error) {
	entry, err := r.store.GetTimeEntryByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("loading time entry %s: %w", entryID, err)
	}
	if entry == nil || entry.Owner != owner {
		return nil, ErrNotFound
	}
	if entry.Deleted() {
		return nil, ErrTombstoned
	}
	return entry, nil
}

// stopEntry returns a stopped copy of e stamped at now.
func stopEntry(e model.TimeEntry, now time.Time) model.TimeEntry {
	stopAt := now
	e.StoppedAt = &stopAt
	e.UpdatedAt = now
	e.ClientUpdatedAt = now
	return e
}
