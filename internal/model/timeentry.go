package model

import "time"

// TimeEntry is a single tracked interval against a task. StoppedAt is
// nil while the timer is running. Entries follow the same tombstone and
// versioning discipline as Task.
type TimeEntry struct {
	ID    string `json:"id"`
	Owner string `json:"user_id"`

	// TaskID references the parent Task. Referential integrity is a soft
	// invariant: the store does not enforce it.
	TaskID string `json:"task_id"`

	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at"`

	// Comment is an optional note attached when the timer was started.
	Comment string `json:"comment"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at"`
	ClientUpdatedAt time.Time  `json:"client_updated_at"`
}

// Running reports whether the entry's timer is still open.
func (e *TimeEntry) Running() bool {
	return e.StoppedAt == nil
}

// Deleted reports whether the entry is tombstoned.
func (e *TimeEntry) Deleted() bool {
	return e.DeletedAt != nil
}
