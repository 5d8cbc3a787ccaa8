// Package timetracking implements the per-item timer state machine: start, pause,
// resume, stop, manual entries, entry edits and the finalize/auto-pause
// transitions used by the scheduler sweeps.
package timetracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/events"
)

const (
	moduleName = "timetracking"

	// maxSaveAttempts bounds re-reads after a lost conditional update
	maxSaveAttempts = 5
)

// ItemStore is the persistence the engine needs: fetch by id, a
// version-checked write of the timer sub-state and item registration.
type ItemStore interface {
	Get(ctx context.Context, itemID string) (*Item, error)
	Save(ctx context.Context, item *Item) error
	ListWithActiveEntries(ctx context.Context) ([]*Item, error)
	Upsert(ctx context.Context, item *Item) (*Item, error)
}

// EventEmitter publishes timer events
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// OffHoursPolicy decides whether a timer started at t counts as extra hours
type OffHoursPolicy interface {
	IsOffHours(ctx context.Context, t time.Time) bool
}

// Service is the time tracking engine
type Service struct {
	store    ItemStore
	emitter  EventEmitter
	offHours OffHoursPolicy
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// NewService creates the time tracking engine. emitter may be nil.
func NewService(store ItemStore, emitter EventEmitter, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		emitter: emitter,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     log.With().Str("service", moduleName).Logger(),
	}
}

// SetClock replaces the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetOffHoursPolicy enables automatic extra-hours flagging on start
func (s *Service) SetOffHoursPolicy(policy OffHoursPolicy) {
	s.offHours = policy
}

// mutate runs fn against a fresh copy of the item and persists the result with a
// version check. Errors from fn (invalid transitions) are returned as-is and never
// retried; only lost races are, and each retry re-evaluates fn on fresh state.
func (s *Service) mutate(ctx context.Context, itemID string, fn func(item *Item, now time.Time) error) (*Item, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		item, err := s.store.Get(ctx, itemID)
		if err != nil {
			return nil, err
		}

		if err := fn(item, s.now()); err != nil {
			return nil, err
		}

		err = s.store.Save(ctx, item)
		if errors.Is(err, ErrVersionConflict) {
			s.log.Debug().
				Str("item_id", itemID).
				Int("attempt", attempt).
				Msg("Concurrent update detected, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return item, nil
	}

	return nil, fmt.Errorf("%w: item %s after %d attempts", ErrVersionConflict, itemID, maxSaveAttempts)
}

func (s *Service) emit(eventType events.EventType, data events.EventData) {
	if s.emitter != nil {
		s.emitter.EmitTyped(eventType, moduleName, data)
	}
}

// RegisterItem creates the item or refreshes its metadata from the host
// system. Timer state of an existing item is never touched.
func (s *Service) RegisterItem(ctx context.Context, reg ItemRegistration) (*Item, error) {
	reg.normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	item, err := s.store.Upsert(ctx, &Item{
		ID:        reg.ID,
		Key:       reg.Key,
		ProjectID: reg.ProjectID,
		ParentID:  reg.ParentID,
		Title:     reg.Title,
		TimeTracking: TimeTracking{
			ActiveTimeEntries: []ActiveTimeEntry{},
			TimeEntries:       []TimeEntry{},
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("item_id", item.ID).
		Str("item_key", item.Key).
		Str("project_id", item.ProjectID).
		Msg("Item registered")
	return item, nil
}

// GetItem returns the item with its timer sub-state
func (s *Service) GetItem(ctx context.Context, itemID string) (*Item, error) {
	return s.store.Get(ctx, itemID)
}

// StartTimer opens a timer for userID on itemID
func (s *Service) StartTimer(ctx context.Context, itemID, userID string, opts StartOptions) (*ActiveTimeEntry, error) {
	var started ActiveTimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		extra := opts.ExtraHours || (s.offHours != nil && s.offHours.IsOffHours(ctx, now))
		entry, err := item.TimeTracking.start(s.newID(), userID, now, extra)
		started = entry
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("item_id", itemID).
		Str("user_id", userID).
		Bool("extra_hours", started.IsExtraHours).
		Msg("Timer started")
	s.emit(events.TimerStarted, &events.TimerData{ItemID: itemID, UserID: userID, EntryID: started.ID, Type: events.TimerStarted})
	return &started, nil
}

// PauseTimer pauses the caller's running timer
func (s *Service) PauseTimer(ctx context.Context, itemID, userID string) (*ActiveTimeEntry, error) {
	var paused ActiveTimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		entry, err := item.TimeTracking.pause(userID, now)
		paused = entry
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(events.TimerPaused, &events.TimerData{ItemID: itemID, UserID: userID, EntryID: paused.ID, Type: events.TimerPaused})
	return &paused, nil
}

// ResumeTimer resumes the caller's paused timer
func (s *Service) ResumeTimer(ctx context.Context, itemID, userID string) (*ActiveTimeEntry, error) {
	var resumed ActiveTimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		entry, err := item.TimeTracking.resume(userID, now)
		resumed = entry
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(events.TimerResumed, &events.TimerData{ItemID: itemID, UserID: userID, EntryID: resumed.ID, Type: events.TimerResumed})
	return &resumed, nil
}

// StopTimer finalizes the caller's timer into a TimeEntry
func (s *Service) StopTimer(ctx context.Context, itemID, userID string, description *string) (*TimeEntry, error) {
	var entry TimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		i := item.TimeTracking.activeIndex(userID)
		if i < 0 {
			return ErrTimerNotRunning
		}
		entry = item.TimeTracking.finalize(i, s.newID(), now, now, StopReasonUser, description)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("item_id", itemID).
		Str("user_id", userID).
		Int64("duration", entry.Duration).
		Msg("Timer stopped")
	s.emit(events.TimerStopped, &events.TimerStoppedData{
		ItemID:          itemID,
		UserID:          userID,
		TimeEntryID:     entry.ID,
		DurationSeconds: entry.Duration,
	})
	return &entry, nil
}

// AddManualTimeEntry appends a manual entry; active timers are untouched
func (s *Service) AddManualTimeEntry(ctx context.Context, itemID, userID string, durationSeconds int64, description *string) (*TimeEntry, error) {
	if durationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}

	var entry TimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		entry = TimeEntry{
			ID:          s.newID(),
			UserID:      userID,
			StartTime:   now,
			EndTime:     now,
			Duration:    durationSeconds,
			Source:      SourceManual,
			Description: description,
			CreatedAt:   now,
		}
		item.TimeTracking.appendEntry(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(events.TimeEntryAdded, &events.TimeEntryData{
		ItemID: itemID, EntryID: entry.ID, UserID: userID, DurationSeconds: entry.Duration, Type: events.TimeEntryAdded,
	})
	return &entry, nil
}

// UpdateTimeEntry edits an entry; only its owner or an admin may do so
func (s *Service) UpdateTimeEntry(ctx context.Context, itemID, entryID, callerID string, isAdmin bool, patch EntryPatch) (*TimeEntry, error) {
	var updated TimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		entry, err := item.TimeTracking.updateEntry(entryID, callerID, isAdmin, patch, now)
		updated = entry
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(events.TimeEntryUpdated, &events.TimeEntryData{
		ItemID: itemID, EntryID: entryID, UserID: updated.UserID, DurationSeconds: updated.Duration, Type: events.TimeEntryUpdated,
	})
	return &updated, nil
}

// DeleteTimeEntry removes an entry and rolls its duration back from the total
func (s *Service) DeleteTimeEntry(ctx context.Context, itemID, entryID, callerID string, isAdmin bool) error {
	var deleted TimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, _ time.Time) error {
		entry, err := item.TimeTracking.deleteEntry(entryID, callerID, isAdmin)
		deleted = entry
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("item_id", itemID).
		Str("entry_id", entryID).
		Str("caller_id", callerID).
		Bool("admin", isAdmin).
		Msg("Time entry deleted")
	s.emit(events.TimeEntryDeleted, &events.TimeEntryData{
		ItemID: itemID, EntryID: entryID, UserID: deleted.UserID, DurationSeconds: deleted.Duration, Type: events.TimeEntryDeleted,
	})
	return nil
}

// UpdateActivity records a heartbeat. It reports whether anything changed:
// callers without a running entry get (false, nil).
func (s *Service) UpdateActivity(ctx context.Context, itemID, userID string) (bool, error) {
	_, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		if !item.TimeTracking.touch(userID, now) {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetTimerStatus reports the caller's timer without modifying anything
func (s *Service) GetTimerStatus(ctx context.Context, itemID, userID string) (*TimerStatus, error) {
	item, err := s.store.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	active, ok := item.TimeTracking.ActiveFor(userID)
	if !ok {
		return &TimerStatus{}, nil
	}

	start := active.StartTime
	return &TimerStatus{
		IsRunning:       !active.IsPaused,
		IsPaused:        active.IsPaused,
		CurrentDuration: elapsedSeconds(active, s.now()),
		StartTime:       &start,
		IsExtraHours:    active.IsExtraHours,
	}, nil
}

// ListTimeEntries returns an item's finalized entries, newest first
func (s *Service) ListTimeEntries(ctx context.Context, itemID string) ([]TimeEntry, error) {
	item, err := s.store.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	entries := make([]TimeEntry, len(item.TimeTracking.TimeEntries))
	copy(entries, item.TimeTracking.TimeEntries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// ListActiveTimers returns every active entry a user holds, across items
func (s *Service) ListActiveTimers(ctx context.Context, userID string) ([]ActiveTimer, error) {
	items, err := s.store.ListWithActiveEntries(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	timers := make([]ActiveTimer, 0)
	for _, item := range items {
		if active, ok := item.TimeTracking.ActiveFor(userID); ok {
			timers = append(timers, ActiveTimer{
				ItemID:          item.ID,
				ItemKey:         item.Key,
				ProjectID:       item.ProjectID,
				Entry:           active,
				CurrentDuration: elapsedSeconds(active, now),
			})
		}
	}
	return timers, nil
}

// ItemsWithActiveEntries is the sweep input: every item holding an open timer
func (s *Service) ItemsWithActiveEntries(ctx context.Context) ([]*Item, error) {
	return s.store.ListWithActiveEntries(ctx)
}

// FinalizeActiveEntry is the scheduler finalize transition. It stops the active
// entry entryID only if it is still present, ending it at min(now, cutoff)
// (cutoff zero means now). A concurrent user stop makes it fail with
// ErrEntryAlreadyFinalized instead of producing a second TimeEntry. An entry
// that started at or after a non-zero cutoff is left running with
// ErrStartedAfterCutoff.
func (s *Service) FinalizeActiveEntry(ctx context.Context, itemID, entryID string, cutoff time.Time, reason StopReason) (*FinalizeResult, error) {
	var entry TimeEntry
	item, err := s.mutate(ctx, itemID, func(item *Item, now time.Time) error {
		i := item.TimeTracking.activeIndexByID(entryID)
		if i < 0 {
			return ErrEntryAlreadyFinalized
		}
		if !cutoff.IsZero() && !item.TimeTracking.ActiveTimeEntries[i].StartTime.Before(cutoff) {
			return ErrStartedAfterCutoff
		}
		end := now
		if !cutoff.IsZero() && cutoff.Before(now) {
			end = cutoff
		}
		entry = item.TimeTracking.finalize(i, s.newID(), end, now, reason, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &FinalizeResult{
		ItemID:    item.ID,
		ItemKey:   item.Key,
		ProjectID: item.ProjectID,
		Entry:     entry,
	}, nil
}

// AutoPause is the inactivity transition. It pauses entry entryID if the entry is
// still present, running, and its last heartbeat is not after staleBefore. The
// pause is backdated to that heartbeat so idle time is never counted.
func (s *Service) AutoPause(ctx context.Context, itemID, entryID string, staleBefore time.Time) (*ActiveTimeEntry, error) {
	var paused ActiveTimeEntry
	_, err := s.mutate(ctx, itemID, func(item *Item, _ time.Time) error {
		i := item.TimeTracking.activeIndexByID(entryID)
		if i < 0 {
			return ErrEntryAlreadyFinalized
		}
		entry := item.TimeTracking.ActiveTimeEntries[i]
		if !entry.IsPaused && entry.LastActivityAt.After(staleBefore) {
			return ErrTimerActive
		}
		p, err := item.TimeTracking.pauseAt(i, entry.LastActivityAt)
		paused = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return &paused, nil
}
