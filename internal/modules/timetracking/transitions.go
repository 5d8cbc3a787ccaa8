package timetracking

import "time"

// elapsedSeconds is the single duration formula shared by stop, status and the
// scheduler finalizers: wall time from start to end, minus completed pauses,
// minus the part of an in-progress pause that lies before end. Clamped to >= 0.
func elapsedSeconds(entry ActiveTimeEntry, end time.Time) int64 {
	span := end.Sub(entry.StartTime)
	paused := time.Duration(entry.AccumulatedPausedTime) * time.Second
	paused += openPause(entry, end)

	d := span - paused
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// pausedSeconds is the total pause time of entry as of end
func pausedSeconds(entry ActiveTimeEntry, end time.Time) int64 {
	total := entry.AccumulatedPausedTime + int64(openPause(entry, end)/time.Second)
	if total < 0 {
		return 0
	}
	return total
}

func openPause(entry ActiveTimeEntry, end time.Time) time.Duration {
	if !entry.IsPaused || entry.PausedAt == nil || !entry.PausedAt.Before(end) {
		return 0
	}
	return end.Sub(*entry.PausedAt)
}

// activeIndex returns the position of the user's active entry, or -1
func (tt *TimeTracking) activeIndex(userID string) int {
	for i := range tt.ActiveTimeEntries {
		if tt.ActiveTimeEntries[i].UserID == userID {
			return i
		}
	}
	return -1
}

// activeIndexByID returns the position of the active entry with id, or -1
func (tt *TimeTracking) activeIndexByID(entryID string) int {
	for i := range tt.ActiveTimeEntries {
		if tt.ActiveTimeEntries[i].ID == entryID {
			return i
		}
	}
	return -1
}

// ActiveFor returns the user's active entry, if any
func (tt *TimeTracking) ActiveFor(userID string) (ActiveTimeEntry, bool) {
	if i := tt.activeIndex(userID); i >= 0 {
		return tt.ActiveTimeEntries[i], true
	}
	return ActiveTimeEntry{}, false
}

// Consistent reports whether TotalTimeSpent matches the entry durations and
// no user holds more than one active entry.
func (tt *TimeTracking) Consistent() bool {
	var sum int64
	for _, e := range tt.TimeEntries {
		sum += e.Duration
	}
	if sum != tt.TotalTimeSpent {
		return false
	}

	seen := make(map[string]bool, len(tt.ActiveTimeEntries))
	for _, a := range tt.ActiveTimeEntries {
		if seen[a.UserID] {
			return false
		}
		seen[a.UserID] = true
	}
	return true
}

func (tt *TimeTracking) start(id, userID string, now time.Time, extraHours bool) (ActiveTimeEntry, error) {
	if tt.activeIndex(userID) >= 0 {
		return ActiveTimeEntry{}, ErrTimerAlreadyRunning
	}

	entry := ActiveTimeEntry{
		ID:             id,
		UserID:         userID,
		StartTime:      now,
		LastActivityAt: now,
		IsExtraHours:   extraHours,
	}
	tt.ActiveTimeEntries = append(tt.ActiveTimeEntries, entry)
	return entry, nil
}

func (tt *TimeTracking) pause(userID string, now time.Time) (ActiveTimeEntry, error) {
	i := tt.activeIndex(userID)
	if i < 0 {
		return ActiveTimeEntry{}, ErrTimerNotRunning
	}
	return tt.pauseAt(i, now)
}

func (tt *TimeTracking) pauseAt(i int, pausedAt time.Time) (ActiveTimeEntry, error) {
	entry := &tt.ActiveTimeEntries[i]
	if entry.IsPaused {
		return ActiveTimeEntry{}, ErrTimerAlreadyPaused
	}
	entry.IsPaused = true
	entry.PausedAt = &pausedAt
	return *entry, nil
}

func (tt *TimeTracking) resume(userID string, now time.Time) (ActiveTimeEntry, error) {
	i := tt.activeIndex(userID)
	if i < 0 {
		return ActiveTimeEntry{}, ErrTimerNotRunning
	}

	entry := &tt.ActiveTimeEntries[i]
	if !entry.IsPaused {
		return ActiveTimeEntry{}, ErrTimerNotPaused
	}
	if entry.PausedAt != nil {
		if paused := int64(now.Sub(*entry.PausedAt) / time.Second); paused > 0 {
			entry.AccumulatedPausedTime += paused
		}
	}
	entry.IsPaused = false
	entry.PausedAt = nil
	entry.LastActivityAt = now
	return *entry, nil
}

// touch refreshes the heartbeat of a running entry; paused or missing entries are left alone
func (tt *TimeTracking) touch(userID string, now time.Time) bool {
	i := tt.activeIndex(userID)
	if i < 0 || tt.ActiveTimeEntries[i].IsPaused {
		return false
	}
	tt.ActiveTimeEntries[i].LastActivityAt = now
	return true
}

// finalize materializes the active entry at position i into a TimeEntry ending at end,
// appends it and removes the active entry. Every stop path goes through here.
func (tt *TimeTracking) finalize(i int, entryID string, end, now time.Time, reason StopReason, description *string) TimeEntry {
	active := tt.ActiveTimeEntries[i]

	entry := TimeEntry{
		ID:             entryID,
		UserID:         active.UserID,
		StartTime:      active.StartTime,
		EndTime:        end,
		Duration:       elapsedSeconds(active, end),
		Source:         SourceAutomatic,
		Description:    description,
		PausedDuration: pausedSeconds(active, end),
		StopReason:     reason,
		CreatedAt:      now,
	}

	tt.ActiveTimeEntries = append(tt.ActiveTimeEntries[:i:i], tt.ActiveTimeEntries[i+1:]...)
	tt.appendEntry(entry)
	return entry
}

func (tt *TimeTracking) appendEntry(entry TimeEntry) {
	tt.TimeEntries = append(tt.TimeEntries, entry)
	tt.TotalTimeSpent += entry.Duration
}

func (tt *TimeTracking) entryIndex(entryID string) int {
	for i := range tt.TimeEntries {
		if tt.TimeEntries[i].ID == entryID {
			return i
		}
	}
	return -1
}

func (tt *TimeTracking) updateEntry(entryID, callerID string, isAdmin bool, patch EntryPatch, now time.Time) (TimeEntry, error) {
	i := tt.entryIndex(entryID)
	if i < 0 {
		return TimeEntry{}, ErrEntryNotFound
	}

	entry := &tt.TimeEntries[i]
	if entry.UserID != callerID && !isAdmin {
		return TimeEntry{}, ErrForbidden
	}

	if patch.Duration != nil {
		if *patch.Duration <= 0 {
			return TimeEntry{}, ErrInvalidDuration
		}
		tt.TotalTimeSpent += *patch.Duration - entry.Duration
		if tt.TotalTimeSpent < 0 {
			tt.TotalTimeSpent = 0
		}
		entry.Duration = *patch.Duration
	}
	if patch.Description != nil {
		desc := *patch.Description
		entry.Description = &desc
	}
	entry.UpdatedAt = &now
	return *entry, nil
}

func (tt *TimeTracking) deleteEntry(entryID, callerID string, isAdmin bool) (TimeEntry, error) {
	i := tt.entryIndex(entryID)
	if i < 0 {
		return TimeEntry{}, ErrEntryNotFound
	}

	entry := tt.TimeEntries[i]
	if entry.UserID != callerID && !isAdmin {
		return TimeEntry{}, ErrForbidden
	}

	tt.TimeEntries = append(tt.TimeEntries[:i:i], tt.TimeEntries[i+1:]...)
	tt.TotalTimeSpent -= entry.Duration
	if tt.TotalTimeSpent < 0 {
		tt.TotalTimeSpent = 0
	}
	return entry, nil
}
