package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micvant/timecheck/internal/model"
	"github.com/micvant/timecheck/internal/projection"
	"github.com/micvant/timecheck/internal/store"
	"github.com/micvant/timecheck/tests/testutil"
)

const owner = "alice@example.com"

func newFixture(t *testing.T) (*store.SQLiteStore, *Recorder) {
	t.Helper()
	s := testutil.NewTestStore(t)
	return s, New(s)
}

func fixClock(r *Recorder, at time.Time) {
	r.Now = func() time.Time { return at }
}

func TestCreateTask_RecordsEntityAndOutbox(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	task, err := rec.CreateTask(ctx, owner, "  Write spec  ", "the sync part")
	require.NoError(t, err)
	assert.Equal(t, "Write spec", task.Title)
	assert.True(t, task.CreatedAt.Equal(t0))
	assert.True(t, task.ClientUpdatedAt.Equal(t0))
	assert.Nil(t, task.DeletedAt)

	outbox, err := s.GetOutbox(ctx, owner)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, model.OpUpsert, outbox[0].Op)
	assert.Equal(t, task.ID, outbox[0].RecordID)
	assert.True(t, outbox[0].ClientUpdatedAt.Equal(task.ClientUpdatedAt),
		"outbox stamp must match the record's client_updated_at")
}

func TestCreateTask_RejectsEmptyTitle(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()

	_, err := rec.CreateTask(ctx, owner, "   ", "")
	require.ErrorIs(t, err, model.ErrEmptyTitle)

	outbox, err := s.GetOutbox(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, outbox, "rejected mutations must not reach the outbox")
}

func TestUpdateTask_StampsNewVersion(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	task, err := rec.CreateTask(ctx, owner, "before", "")
	require.NoError(t, err)

	t1 := t0.Add(time.Minute)
	fixClock(rec, t1)
	updated, err := rec.UpdateTask(ctx, owner, task.ID, "after", "desc")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.True(t, updated.UpdatedAt.Equal(t1))
	assert.True(t, updated.CreatedAt.Equal(t0), "created_at is immutable")

	outbox, err := s.GetOutbox(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, outbox, 2)
}

func TestDeleteTask_TombstoneIsTerminal(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	fixClock(rec, model.Now())

	task, err := rec.CreateTask(ctx, owner, "doomed", "")
	require.NoError(t, err)

	require.NoError(t, rec.DeleteTask(ctx, owner, task.ID))

	got, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Deleted())

	// No un-delete path exists.
	_, err = rec.UpdateTask(ctx, owner, task.ID, "revived", "")
	assert.ErrorIs(t, err, ErrTombstoned)
	err = rec.DeleteTask(ctx, owner, task.ID)
	assert.ErrorIs(t, err, ErrTombstoned)
	_, err = rec.StartTimer(ctx, owner, task.ID, "")
	assert.ErrorIs(t, err, ErrTombstoned)
}

func TestDeleteTask_OutboxCarriesDeleteOp(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	fixClock(rec, model.Now())

	task, err := rec.CreateTask(ctx, owner, "doomed", "")
	require.NoError(t, err)
	require.NoError(t, rec.DeleteTask(ctx, owner, task.ID))

	outbox, err := s.GetOutbox(ctx, owner)
	require.NoError(t, err)
	require.Len(t, outbox, 2)
	assert.Equal(t, model.OpUpsert, outbox[0].Op)
	assert.Equal(t, model.OpDelete, outbox[1].Op)
}

func TestMutations_WrongOwnerRejected(t *testing.T) {
	_, rec := newFixture(t)
	ctx := context.Background()
	fixClock(rec, model.Now())

	task, err := rec.CreateTask(ctx, owner, "mine", "")
	require.NoError(t, err)

	_, err = rec.UpdateTask(ctx, "bob@example.com", task.ID, "stolen", "")
	assert.ErrorIs(t, err, ErrNotFound)
	err = rec.DeleteTask(ctx, "bob@example.com", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartTimer_AutoStopsPriorRunningEntry(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	task, err := rec.CreateTask(ctx, owner, "busy", "")
	require.NoError(t, err)

	first, err := rec.StartTimer(ctx, owner, task.ID, "first")
	require.NoError(t, err)
	assert.True(t, first.Running())

	t1 := t0.Add(10 * time.Second)
	fixClock(rec, t1)
	second, err := rec.StartTimer(ctx, owner, task.ID, "second")
	require.NoError(t, err)

	// At most one running entry per task.
	running := true
	open, err := s.GetTimeEntries(ctx, store.EntryFilter{Owner: owner, TaskID: task.ID, Running: &running})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	stoppedFirst, err := s.GetTimeEntryByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stoppedFirst.StoppedAt)
	assert.True(t, stoppedFirst.StoppedAt.Equal(t1))
}

func TestStopTimer_StoredDurationIsExact(t *testing.T) {
	_, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	task, err := rec.CreateTask(ctx, owner, "Write spec", "")
	require.NoError(t, err)
	entry, err := rec.StartTimer(ctx, owner, task.ID, "")
	require.NoError(t, err)

	// Projection observes ten seconds while the timer runs.
	observed := projection.EntryDuration(entry, t0.Add(10*time.Second))
	assert.Equal(t, "00:00:10", projection.FormatDuration(observed))

	fixClock(rec, t0.Add(10*time.Second))
	stopped, err := rec.StopTimer(ctx, owner, entry.ID)
	require.NoError(t, err)

	// Stored duration is exactly ten seconds at any later instant.
	stored := projection.EntryDuration(stopped, t0.Add(time.Hour))
	assert.Equal(t, 10*time.Second, stored)
}

func TestStopTimer_RejectsStoppedEntry(t *testing.T) {
	_, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	task, err := rec.CreateTask(ctx, owner, "t", "")
	require.NoError(t, err)
	entry, err := rec.StartTimer(ctx, owner, task.ID, "")
	require.NoError(t, err)

	_, err = rec.StopTimer(ctx, owner, entry.ID)
	require.NoError(t, err)
	_, err = rec.StopTimer(ctx, owner, entry.ID)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestClearTaskTime_TombstonesAllEntries(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	task, err := rec.CreateTask(ctx, owner, "t", "")
	require.NoError(t, err)

	first, err := rec.StartTimer(ctx, owner, task.ID, "")
	require.NoError(t, err)
	fixClock(rec, t0.Add(time.Minute))
	_, err = rec.StopTimer(ctx, owner, first.ID)
	require.NoError(t, err)

	fixClock(rec, t0.Add(2*time.Minute))
	_, err = rec.StartTimer(ctx, owner, task.ID, "")
	require.NoError(t, err)

	t3 := t0.Add(3 * time.Minute)
	fixClock(rec, t3)
	require.NoError(t, rec.ClearTaskTime(ctx, owner, task.ID))

	visible, err := s.GetTimeEntries(ctx, store.EntryFilter{Owner: owner, TaskID: task.ID})
	require.NoError(t, err)
	assert.Empty(t, visible)

	// Tombstoned, not removed; running entry got a stop stamp first.
	all, err := s.GetTimeEntries(ctx, store.EntryFilter{Owner: owner, TaskID: task.ID, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, e := range all {
		assert.True(t, e.Deleted())
		require.NotNil(t, e.StoppedAt)
	}
}

func TestSweepRunning_StopsEverythingForOwner(t *testing.T) {
	s, rec := newFixture(t)
	ctx := context.Background()
	t0 := model.Now()
	fixClock(rec, t0)

	taskA, err := rec.CreateTask(ctx, owner, "a", "")
	require.NoError(t, err)
	taskB, err := rec.CreateTask(ctx, owner, "b", "")
	require.NoError(t, err)
	_, err = rec.StartTimer(ctx, owner, taskA.ID, "")
	require.NoError(t, err)
	_, err = rec.StartTimer(ctx, owner, taskB.ID, "")
	require.NoError(t, err)

	stopped, err := rec.SweepRunning(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, stopped)

	running := true
	open, err := s.GetTimeEntries(ctx, store.EntryFilter{Owner: owner, Running: &running})
	require.NoError(t, err)
	assert.Empty(t, open)

	again, err := rec.SweepRunning(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, again)
}
