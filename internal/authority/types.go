package authority

import (
	"encoding/json"
	"fmt"

	"github.com/micvant/timecheck/internal/model"
)

// ChangeItem is one pushed mutation: the operation plus the full entity
// snapshot exactly as it sits in the outbox.
type ChangeItem struct {
	Op   model.Op        `json:"op"`
	Data json.RawMessage `json:"data"`
}

// ChangeSet groups pushed mutations by table, each list in log-append order.
type ChangeSet struct {
	Tasks       []ChangeItem `json:"tasks"`
	TimeEntries []ChangeItem `json:"time_entries"`
}

// SyncRequest is the /sync request body. LastSyncAt is nil before the
// first successful sync, which asks the authority for full history.
type SyncRequest struct {
	LastSyncAt *string   `json:"last_sync_at"`
	Changes    ChangeSet `json:"changes"`
}

// SyncResult is the authority's merged answer: full authoritative
// snapshots to upsert by id, and the server time that becomes the new
// cursor.
type SyncResult struct {
	Tasks       []model.Task      `json:"tasks"`
	TimeEntries []model.TimeEntry `json:"time_entries"`
	ServerTime  string            `json:"server_time"`
}

// validate rejects responses that would put malformed records into the
// store. The contract fails closed: one bad record spoils the batch.
func (r *SyncResult) validate() error {
	if r.ServerTime == "" {
		return fmt.Errorf("%w: missing server_time", ErrProtocol)
	}
	for i := range r.Tasks {
		t := &r.Tasks[i]
		if t.ID == "" {
			return fmt.Errorf("%w: task without id", ErrProtocol)
		}
		if t.UpdatedAt.IsZero() || t.ClientUpdatedAt.IsZero() {
			return fmt.Errorf("%w: task %s missing timestamps", ErrProtocol, t.ID)
		}
	}
	for i := range r.TimeEntries {
		e := &r.TimeEntries[i]
		if e.ID == "" {
			return fmt.Errorf("%w: time entry without id", ErrProtocol)
		}
		if e.TaskID == "" {
			return fmt.Errorf("%w: time entry %s without task_id", ErrProtocol, e.ID)
		}
		if e.StartedAt.IsZero() || e.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: time entry %s missing timestamps", ErrProtocol, e.ID)
		}
	}
	return nil
}

// tokenResponse is the body returned by the auth endpoints.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// errorResponse is the structured error payload some endpoints return.
type errorResponse struct {
	Detail string `json:"detail"`
}
