package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/modules/timetracking"
)

// ExtraHoursJob runs at the start of the work day and stops every timer
// flagged as extra hours, so no such session spans two off-hours windows.
type ExtraHoursJob struct {
	finalizer
}

// NewExtraHoursJob creates the extra-hours sweep
func NewExtraHoursJob(engine TimerEngine, eventManager EventManagerInterface) *ExtraHoursJob {
	return &ExtraHoursJob{
		finalizer: finalizer{engine: engine, events: eventManager, log: zerolog.Nop()},
	}
}

// SetLogger sets the logger for the job
func (j *ExtraHoursJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *ExtraHoursJob) Name() string {
	return "extra_hours"
}

// Run executes the sweep
func (j *ExtraHoursJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	summary, err := j.Sweep(ctx)
	if err != nil {
		return err
	}
	return summary.Err()
}

// Sweep stops extra-hours entries, ending them now
func (j *ExtraHoursJob) Sweep(ctx context.Context) (*SweepSummary, error) {
	return j.stopAll(ctx, j.Name(), time.Time{}, timetracking.StopReasonExtraHours,
		func(active timetracking.ActiveTimeEntry) bool {
			return active.IsExtraHours
		})
}
