package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/events"
	"github.com/aristath/worktime/internal/modules/timetracking"
)

// InactivityMonitor pauses running timers whose last heartbeat is older than
// the threshold. The pause is backdated to that heartbeat. Running it twice
// in a row changes nothing the second time.
type InactivityMonitor struct {
	engine    TimerEngine
	events    EventManagerInterface
	threshold time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewInactivityMonitor creates a new inactivity sweep
func NewInactivityMonitor(engine TimerEngine, eventManager EventManagerInterface, threshold time.Duration) *InactivityMonitor {
	return &InactivityMonitor{
		engine:    engine,
		events:    eventManager,
		threshold: threshold,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *InactivityMonitor) SetLogger(log zerolog.Logger) {
	j.log = log
}

// SetClock replaces the time source (tests)
func (j *InactivityMonitor) SetClock(now func() time.Time) {
	j.now = now
}

// Name returns the job name
func (j *InactivityMonitor) Name() string {
	return "inactivity_monitor"
}

// Run executes one sweep
func (j *InactivityMonitor) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	summary, err := j.Sweep(ctx)
	if err != nil {
		return err
	}
	return summary.Err()
}

// Sweep pauses every stale running entry and reports what it did
func (j *InactivityMonitor) Sweep(ctx context.Context) (*SweepSummary, error) {
	items, err := j.engine.ItemsWithActiveEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active timers: %w", err)
	}

	staleBefore := j.now().Add(-j.threshold)
	summary := newSummary(j.Name())
	for _, item := range items {
		for _, active := range item.TimeTracking.ActiveTimeEntries {
			if active.IsPaused || active.LastActivityAt.After(staleBefore) {
				continue
			}

			paused, err := j.engine.AutoPause(ctx, item.ID, active.ID, staleBefore)
			switch {
			case errors.Is(err, timetracking.ErrEntryAlreadyFinalized),
				errors.Is(err, timetracking.ErrTimerAlreadyPaused),
				errors.Is(err, timetracking.ErrTimerActive):
				// state moved on since the listing
				continue
			case err != nil:
				j.log.Error().
					Err(err).
					Str("item_id", item.ID).
					Str("entry_id", active.ID).
					Msg("Failed to auto-pause timer")
				summary.fail(item.ID, active.ID, err)
				continue
			}

			summary.Count++
			j.log.Info().
				Str("item_id", item.ID).
				Str("user_id", paused.UserID).
				Time("paused_at", *paused.PausedAt).
				Msg("Timer auto-paused after inactivity")
			if j.events != nil {
				j.events.EmitTyped(events.TimerAutoPaused, "scheduler", &events.TimerAutoPausedData{
					ItemID:   item.ID,
					UserID:   paused.UserID,
					PausedAt: paused.PausedAt.UTC().Format(time.RFC3339),
				})
			}
		}
	}

	if summary.Count > 0 || len(summary.Errors) > 0 {
		summary.publish(j.events)
	}
	return summary, nil
}
