// Package projection computes elapsed time over the entity set and the
// wall clock. Durations are never stored: every observation recomputes
// completed intervals plus (now - started_at) for running entries. Pure
// read path, no I/O.
package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/micvant/timecheck/internal/model"
)

// EntryDuration returns the elapsed time of a single entry at the given
// instant. Running entries count up to now; negative intervals floor at
// zero.
func EntryDuration(e *model.TimeEntry, now time.Time) time.Duration {
	end := now
	if e.StoppedAt != nil {
		end = *e.StoppedAt
	}
	d := end.Sub(e.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// TaskDuration sums the elapsed time of all non-tombstoned entries of
// the task at the given instant.
func TaskDuration(entries []model.TimeEntry, taskID string, now time.Time) time.Duration {
	var total time.Duration
	for i := range entries {
		e := &entries[i]
		if e.TaskID != taskID || e.Deleted() {
			continue
		}
		total += EntryDuration(e, now)
	}
	return total
}

// FormatDuration renders a duration as HH:MM:SS, whole seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d",
		total/3600, (total%3600)/60, total%60)
}

// Watch invokes fn with the current instant at a fixed cadence until the
// context is cancelled. Display code uses it to re-project running
// timers; it touches no stored data.
func Watch(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}
