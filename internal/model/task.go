package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation errors shared by the mutation paths.
var (
	ErrEmptyTitle = errors.New("task title must not be empty")
	ErrEmptyOwner = errors.New("owner must not be empty")
)

// Task is a unit of work time is tracked against. Tasks are created
// locally, identified by a client-generated UUID, and soft-deleted only:
// DeletedAt marks a tombstone that is kept around so the deletion can
// propagate through sync.
type Task struct {
	// ID is the client-generated unique identifier, immutable once set.
	ID string `json:"id"`

	// Owner is the account partition this task belongs to. Every query
	// and sync operation is scoped to exactly one owner.
	Owner string `json:"user_id"`

	// Title is the display name. Never empty on a recorded task.
	Title string `json:"title"`

	// Description is optional free text.
	Description string `json:"description"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`

	// ClientUpdatedAt is the instant of the local mutation that produced
	// this exact version. It doubles as the outbox version stamp and is
	// what the remote authority compares during conflict resolution.
	ClientUpdatedAt time.Time `json:"client_updated_at"`
}

// Deleted reports whether the task is tombstoned.
func (t *Task) Deleted() bool {
	return t.DeletedAt != nil
}

// Validate checks the invariants that must hold before a mutation
// of this task may be recorded.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.Owner == "" {
		return ErrEmptyOwner
	}
	return nil
}

// NewID returns a fresh client-generated record identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current instant in UTC, truncated to millisecond
// precision so stamps survive an ISO-8601 round trip unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
