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

const sweepTimeout = 2 * time.Minute

// SweepSummary is the outcome of one sweep: how many entries it changed and
// the per-entry failures it collected.
type SweepSummary struct {
	Sweep  string   `json:"sweep"`
	Count  int      `json:"count"`
	Errors []string `json:"errors"`
}

func newSummary(sweep string) *SweepSummary {
	return &SweepSummary{Sweep: sweep, Errors: []string{}}
}

func (s *SweepSummary) fail(itemID, entryID string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("item %s entry %s: %v", itemID, entryID, err))
}

// Err folds the collected failures into a single error, or nil
func (s *SweepSummary) Err() error {
	if len(s.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d entries failed", s.Sweep, len(s.Errors))
}

func (s *SweepSummary) publish(em EventManagerInterface) {
	if em == nil {
		return
	}
	em.EmitTyped(events.SweepCompleted, "scheduler", &events.SweepCompletedData{
		Sweep:     s.Sweep,
		Processed: s.Count,
		Errors:    len(s.Errors),
	})
}

// finalizer force-stops active entries on behalf of the end-of-day and
// extra-hours sweeps. Items are processed independently.
type finalizer struct {
	engine TimerEngine
	events EventManagerInterface
	log    zerolog.Logger
}

func (f *finalizer) stopAll(ctx context.Context, sweep string, cutoff time.Time, reason timetracking.StopReason,
	include func(timetracking.ActiveTimeEntry) bool) (*SweepSummary, error) {
	items, err := f.engine.ItemsWithActiveEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active timers: %w", err)
	}

	summary := newSummary(sweep)
	for _, item := range items {
		for _, active := range item.TimeTracking.ActiveTimeEntries {
			if include != nil && !include(active) {
				continue
			}

			result, err := f.engine.FinalizeActiveEntry(ctx, item.ID, active.ID, cutoff, reason)
			if errors.Is(err, timetracking.ErrEntryAlreadyFinalized) ||
				errors.Is(err, timetracking.ErrStartedAfterCutoff) {
				// stopped by its owner, or restarted after the cutoff, since the listing
				continue
			}
			if err != nil {
				f.log.Error().
					Err(err).
					Str("item_id", item.ID).
					Str("entry_id", active.ID).
					Msg("Failed to stop timer")
				summary.fail(item.ID, active.ID, err)
				continue
			}

			summary.Count++
			f.notify(result, reason)
		}
	}

	f.log.Info().
		Int("stopped", summary.Count).
		Int("errors", len(summary.Errors)).
		Msg("Timers stopped")
	summary.publish(f.events)
	return summary, nil
}

func (f *finalizer) notify(result *timetracking.FinalizeResult, reason timetracking.StopReason) {
	f.log.Info().
		Str("item_id", result.ItemID).
		Str("user_id", result.Entry.UserID).
		Int64("duration", result.Entry.Duration).
		Str("reason", string(reason)).
		Msg("Timer auto-stopped")

	if f.events == nil {
		return
	}
	f.events.EmitTyped(events.TimerAutoStopped, "scheduler", &events.TimerAutoStoppedData{
		UserID:          result.Entry.UserID,
		ProjectID:       result.ProjectID,
		ItemID:          result.ItemID,
		ItemKey:         result.ItemKey,
		Reason:          string(reason),
		DurationSeconds: result.Entry.Duration,
	})
}
