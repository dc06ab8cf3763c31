// Package sync drives the pull-push protocol against the remote
// authority and schedules its attempts. One cycle pushes the queued
// outbox, applies the authoritative answer, advances the cursor, and
// clears exactly the outbox rows it pushed — all local effects in one
// transaction, so a failed cycle changes nothing.
package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/micvant/timecheck/internal/authority"
	"github.com/micvant/timecheck/internal/credential"
	"github.com/micvant/timecheck/internal/model"
	"github.com/micvant/timecheck/internal/store"
)

// Authority is the remote boundary the engine talks to.
type Authority interface {
	Health(ctx context.Context) error
	Sync(ctx context.Context, token string, req authority.SyncRequest) (*authority.SyncResult, error)
}

// Engine reconciles one owner's local state with the remote authority.
type Engine struct {
	store  store.Store
	client Authority
	creds  credential.Provider
	log    *zap.Logger
}

// NewEngine wires an engine from its collaborators. Nothing here is a
// singleton: the caller owns the store handle and credential provider.
func NewEngine(s store.Store, client Authority, creds credential.Provider, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, client: client, creds: creds, log: log}
}

// Sync runs one pull-push cycle for the owner and returns the new
// cursor. Failures are recoverable by construction: until the authority
// answers success, no local state changes, and the outbox keeps the
// unacknowledged intent for the next attempt.
func (e *Engine) Sync(ctx context.Context, owner string) (string, error) {
	token, err := e.creds.Token()
	if err != nil {
		return "", fmt.Errorf("sync requires a credential: %w", err)
	}

	if err := e.client.Health(ctx); err != nil {
		return "", err
	}

	cursor, err := e.store.GetCursor(ctx, owner)
	if err != nil {
		return "", err
	}
	outbox, err := e.store.GetOutbox(ctx, owner)
	if err != nil {
		return "", err
	}

	request := authority.SyncRequest{Changes: groupChanges(outbox)}
	if cursor != "" {
		request.LastSyncAt = &cursor
	}

	e.log.Debug("sync cycle starting",
		zap.String("owner", owner),
		zap.String("cursor", cursor),
		zap.Int("outbox", len(outbox)),
	)

	result, err := e.client.Sync(ctx, token, request)
	if err != nil {
		return "", err
	}

	// The server's records are authoritative but carry no partition:
	// stamp them into the owner's before they land.
	for i := range result.Tasks {
		result.Tasks[i].Owner = owner
	}
	for i := range result.TimeEntries {
		result.TimeEntries[i].Owner = owner
	}

	consumed := make([]int64, len(outbox))
	for i, rec := range outbox {
		consumed[i] = rec.Seq
	}

	err = e.store.ApplySyncResult(ctx, owner,
		result.Tasks, result.TimeEntries, consumed, result.ServerTime)
	if err != nil {
		return "", fmt.Errorf("applying sync result: %w", err)
	}

	e.log.Info("sync cycle complete",
		zap.String("owner", owner),
		zap.String("cursor", result.ServerTime),
		zap.Int("pushed", len(outbox)),
		zap.Int("tasks", len(result.Tasks)),
		zap.Int("time_entries", len(result.TimeEntries)),
	)

	return result.ServerTime, nil
}

// groupChanges splits the outbox into per-table batches, each keeping
// log-append order. Rows are replayed as-is: the engine never coalesces
// multiple mutations of the same record.
func groupChanges(outbox []model.OutboxRecord) authority.ChangeSet {
	changes := authority.ChangeSet{
		Tasks:       []authority.ChangeItem{},
		TimeEntries: []authority.ChangeItem{},
	}
	for _, rec := range outbox {
		item := authority.ChangeItem{Op: rec.Op, Data: rec.Payload}
		switch rec.Table {
		case model.TableTasks:
			changes.Tasks = append(changes.Tasks, item)
		case model.TableTimeEntries:
			changes.TimeEntries = append(changes.TimeEntries, item)
		}
	}
	return changes
}
