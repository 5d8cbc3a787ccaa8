package scheduler

import (
	"context"
	"time"

	"github.com/aristath/worktime/internal/events"
	"github.com/aristath/worktime/internal/modules/settings"
	"github.com/aristath/worktime/internal/modules/timetracking"
)

// TimerEngine is the subset of the time tracking engine the sweeps drive.
// Sweeps never write timer state directly.
type TimerEngine interface {
	ItemsWithActiveEntries(ctx context.Context) ([]*timetracking.Item, error)
	FinalizeActiveEntry(ctx context.Context, itemID, entryID string, cutoff time.Time, reason timetracking.StopReason) (*timetracking.FinalizeResult, error)
	AutoPause(ctx context.Context, itemID, entryID string, staleBefore time.Time) (*timetracking.ActiveTimeEntry, error)
}

// SettingsProvider reads the current timer policy
type SettingsProvider interface {
	GetTimerSettings(ctx context.Context) (settings.TimerSettings, error)
}

// CycleStore persists the last completed end-of-day cycle across restarts
type CycleStore interface {
	LastEndOfDayCycle(ctx context.Context) (string, error)
	SetLastEndOfDayCycle(ctx context.Context, cycle string) error
}

// EventManagerInterface defines the contract for event emission
type EventManagerInterface interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}
