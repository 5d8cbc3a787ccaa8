package timetracking

import "errors"

var (
	// ErrItemNotFound is returned when the tracked item does not exist
	ErrItemNotFound = errors.New("timetracking: item not found")
	// ErrEntryNotFound is returned when a time entry id does not exist on the item
	ErrEntryNotFound = errors.New("timetracking: time entry not found")

	// ErrTimerAlreadyRunning is returned by StartTimer when the caller already holds an active entry
	ErrTimerAlreadyRunning = errors.New("timetracking: timer already running")
	// ErrTimerNotRunning is returned when the caller holds no active entry
	ErrTimerNotRunning = errors.New("timetracking: timer not running")
	// ErrTimerAlreadyPaused is returned when pausing a paused entry
	ErrTimerAlreadyPaused = errors.New("timetracking: timer already paused")
	// ErrTimerNotPaused is returned when resuming a running entry
	ErrTimerNotPaused = errors.New("timetracking: timer not paused")
	// ErrTimerActive is returned by AutoPause when the entry saw a recent heartbeat
	ErrTimerActive = errors.New("timetracking: timer has recent activity")
	// ErrEntryAlreadyFinalized is returned by scheduler transitions when the
	// active entry they targeted is gone (stopped by someone else)
	ErrEntryAlreadyFinalized = errors.New("timetracking: active entry already finalized")
	// ErrStartedAfterCutoff is returned by FinalizeActiveEntry when the entry
	// began at or after the cutoff it would be stopped at
	ErrStartedAfterCutoff = errors.New("timetracking: entry started after cutoff")

	// ErrForbidden is returned when mutating another user's entry without privilege
	ErrForbidden = errors.New("timetracking: forbidden")
	// ErrInvalidItem is returned when registering an item without an id, key or project
	ErrInvalidItem = errors.New("timetracking: invalid item")
	// ErrInvalidDuration is returned for non-positive manual or edited durations
	ErrInvalidDuration = errors.New("timetracking: duration must be positive")

	// ErrVersionConflict is returned by the repository when a conditional update lost a race
	ErrVersionConflict = errors.New("timetracking: version conflict")

	// errNoChange short-circuits a mutation that would not modify state
	errNoChange = errors.New("timetracking: no change")
)

// ErrorKind classifies errors for transport layers
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindPreconditionFailed
	KindForbidden
	KindInvalid
)

// KindOf maps an error returned by the engine to its ErrorKind
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrEntryNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimerAlreadyRunning):
		return KindConflict
	case errors.Is(err, ErrTimerNotRunning),
		errors.Is(err, ErrTimerAlreadyPaused),
		errors.Is(err, ErrTimerNotPaused),
		errors.Is(err, ErrTimerActive),
		errors.Is(err, ErrEntryAlreadyFinalized),
		errors.Is(err, ErrStartedAfterCutoff):
		return KindPreconditionFailed
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidItem):
		return KindInvalid
	default:
		return KindInternal
	}
}
