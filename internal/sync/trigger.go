package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

// State is the externally observable phase of the trigger.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateOK
	StateError
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateOK:
		return "ok"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is what the outside world may observe about syncing: the
// current state, the cursor of the last success, and the last error.
type Status struct {
	State    State
	Cursor   string
	LastSync time.Time
	Err      error
}

// Syncer runs one sync cycle for an owner.
type Syncer interface {
	Sync(ctx context.Context, owner string) (string, error)
}

// defaultInterval is how often the trigger attempts a sync.
const defaultInterval = 15 * time.Second

// Trigger schedules sync attempts: a fixed-interval ticker, an
// online-transition edge, and manual kicks. At most one attempt runs at
// a time; overlapping triggers are dropped, not queued.
type Trigger struct {
	engine   Syncer
	owner    string
	interval time.Duration
	log      *zap.Logger

	kickCh   chan struct{}
	onlineCh chan struct{}

	mu     gosync.Mutex
	busy   bool
	status Status
}

// NewTrigger builds a trigger for one owner. A non-positive interval
// falls back to the default 15s.
func NewTrigger(engine Syncer, owner string, interval time.Duration, log *zap.Logger) *Trigger {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Trigger{
		engine:   engine,
		owner:    owner,
		interval: interval,
		log:      log,
		kickCh:   make(chan struct{}, 1),
		onlineCh: make(chan struct{}, 1),
	}
}

// Run attempts a sync every interval and immediately on kicks and
// online transitions, until the context is cancelled.
func (t *Trigger) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.attempt(ctx)
		case <-t.kickCh:
			t.attempt(ctx)
		case <-t.onlineCh:
			t.attempt(ctx)
		}
	}
}

// Kick requests an immediate sync attempt. Non-blocking; a pending kick
// absorbs further ones.
func (t *Trigger) Kick() {
	select {
	case t.kickCh <- struct{}{}:
	default:
	}
}

// Online signals a transition from offline to online.
func (t *Trigger) Online() {
	select {
	case t.onlineCh <- struct{}{}:
	default:
	}
}

// Status returns the last observed sync status.
func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// attempt starts one guarded sync cycle in the background. If an
// attempt is already in flight the new one is dropped, so the scheduling
// loop keeps observing triggers while a slow cycle runs.
func (t *Trigger) attempt(ctx context.Context) {
	t.mu.Lock()
	if t.busy {
		t.mu.Unlock()
		t.log.Debug("sync attempt dropped, previous still in flight")
		return
	}
	t.busy = true
	t.status.State = StateSyncing
	t.mu.Unlock()

	go t.runCycle(ctx)
}

// runCycle executes the sync call and records the outcome.
func (t *Trigger) runCycle(ctx context.Context) {
	cursor, err := t.engine.Sync(ctx, t.owner)

	t.mu.Lock()
	t.busy = false
	if err != nil {
		t.status.State = StateError
		t.status.Err = err
	} else {
		t.status.State = StateOK
		t.status.Err = nil
		t.status.Cursor = cursor
		t.status.LastSync = time.Now()
	}
	t.mu.Unlock()

	if err != nil {
		t.log.Warn("sync attempt failed", zap.String("owner", t.owner), zap.Error(err))
	}
}
