package model

import (
	"encoding/json"
	"time"
)

// Table names a synchronized entity table.
type Table string

const (
	TableTasks       Table = "tasks"
	TableTimeEntries Table = "time_entries"
)

// Op is the kind of change an outbox row carries. Deletes are
// tombstoning upserts: the payload still holds the full record, with
// deleted_at set.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// OutboxRecord is one pending local mutation awaiting acknowledgment by
// the remote authority. One row is appended per mutation; rows for the
// same record are never coalesced and are replayed in log-append order.
type OutboxRecord struct {
	// Seq is the storage-assigned append position within the log.
	Seq int64 `json:"-"`

	ID       string `json:"id"`
	Table    Table  `json:"table"`
	RecordID string `json:"record_id"`
	Op       Op     `json:"op"`

	// Payload is the full entity snapshot at mutation time.
	Payload json.RawMessage `json:"payload"`

	Owner string `json:"user_id"`

	// ClientUpdatedAt mirrors the payload's client_updated_at stamp.
	ClientUpdatedAt time.Time `json:"client_updated_at"`
}
