package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/modules/settings"
	"github.com/aristath/worktime/internal/modules/timetracking"
)

// EndOfDaySchedule fires at second 0 of every minute. The cutoff itself is
// runtime-configurable, so the job polls and decides on each tick.
const EndOfDaySchedule = "0 * * * * *"

// endOfDayCatchUp is how long after the cutoff a delayed tick still triggers the stop
const endOfDayCatchUp = 5 * time.Minute

// EndOfDayJob force-stops every open timer at the configured local cutoff
type EndOfDayJob struct {
	finalizer
	settings        SettingsProvider
	cycles          CycleStore
	defaultTimezone string
	now             func() time.Time

	mu        sync.Mutex
	lastCycle string
}

// NewEndOfDayJob creates the end-of-day sweep. defaultTimezone is used when the
// stored timezone cannot be loaded. When settingsProvider also implements
// CycleStore the completed cycle survives restarts.
func NewEndOfDayJob(engine TimerEngine, settingsProvider SettingsProvider, eventManager EventManagerInterface, defaultTimezone string) *EndOfDayJob {
	cycles, _ := settingsProvider.(CycleStore)
	return &EndOfDayJob{
		finalizer:       finalizer{engine: engine, events: eventManager, log: zerolog.Nop()},
		settings:        settingsProvider,
		cycles:          cycles,
		defaultTimezone: defaultTimezone,
		now:             time.Now,
	}
}

// SetLogger sets the logger for the job
func (j *EndOfDayJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// SetClock replaces the time source (tests)
func (j *EndOfDayJob) SetClock(now func() time.Time) {
	j.now = now
}

// Name returns the job name
func (j *EndOfDayJob) Name() string {
	return "end_of_day"
}

// Run executes one poll
func (j *EndOfDayJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	summary, err := j.Check(ctx)
	if err != nil || summary == nil {
		return err
	}
	return summary.Err()
}

// Check evaluates the policy at the current time and, when the cutoff is due,
// stops every active entry at the cutoff instant. It returns nil, nil when
// nothing was due.
func (j *EndOfDayJob) Check(ctx context.Context) (*SweepSummary, error) {
	policy, err := j.settings.GetTimerSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read timer settings: %w", err)
	}
	if !policy.AutoStopEnabled {
		return nil, nil
	}

	loc, configured := policy.Location(j.defaultTimezone)
	if !configured {
		j.log.Warn().
			Str("timezone", policy.AutoStopTimezone).
			Str("fallback", loc.String()).
			Msg("Invalid auto-stop timezone, using default")
	}

	local := j.now().In(loc)
	if !policy.IsWorkday(local) {
		return nil, nil
	}

	cutoff := policy.CutoffOn(local)
	if local.Before(cutoff) || !local.Before(cutoff.Add(endOfDayCatchUp)) {
		return nil, nil
	}

	cycle := cycleKey(policy, cutoff)
	j.mu.Lock()
	defer j.mu.Unlock()
	done, err := j.completed(ctx, cycle)
	if err != nil || done {
		return nil, err
	}

	j.log.Info().
		Str("timezone", loc.String()).
		Time("cutoff", cutoff).
		Msg("End of work day reached, stopping timers")

	// Timers started at or after the cutoff are left running
	startedBefore := func(active timetracking.ActiveTimeEntry) bool {
		return active.StartTime.Before(cutoff)
	}
	summary, err := j.stopAll(ctx, j.Name(), cutoff, timetracking.StopReasonEndOfDay, startedBefore)
	if err != nil {
		return nil, err
	}

	j.lastCycle = cycle
	if j.cycles != nil {
		if err := j.cycles.SetLastEndOfDayCycle(ctx, cycle); err != nil {
			j.log.Warn().Err(err).Str("cycle", cycle).Msg("Failed to persist end-of-day cycle")
		}
	}
	return summary, nil
}

func (j *EndOfDayJob) completed(ctx context.Context, cycle string) (bool, error) {
	if j.lastCycle == cycle {
		return true, nil
	}
	if j.cycles == nil {
		return false, nil
	}
	stored, err := j.cycles.LastEndOfDayCycle(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read end-of-day cycle: %w", err)
	}
	if stored == cycle {
		j.lastCycle = cycle
		return true, nil
	}
	return false, nil
}

func cycleKey(policy settings.TimerSettings, cutoff time.Time) string {
	return cutoff.Format("2006-01-02T15:04") + "@" + policy.AutoStopTimezone
}
