package timetracking

import (
	"fmt"
	"strings"
	"time"
)

// Source tells how a TimeEntry was produced
type Source string

const (
	SourceManual    Source = "manual"
	SourceAutomatic Source = "automatic"
)

// StopReason records which finalizer materialized a TimeEntry
type StopReason string

const (
	StopReasonUser       StopReason = "user"
	StopReasonEndOfDay   StopReason = "end_of_day"
	StopReasonExtraHours StopReason = "extra_hours"
)

// ActiveTimeEntry is the in-flight timer session of one user on one item.
// Durations are whole seconds.
type ActiveTimeEntry struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	StartTime             time.Time  `json:"startTime"`
	LastActivityAt        time.Time  `json:"lastActivityAt"`
	IsPaused              bool       `json:"isPaused"`
	PausedAt              *time.Time `json:"pausedAt,omitempty"`
	AccumulatedPausedTime int64      `json:"accumulatedPausedTime"`
	IsExtraHours          bool       `json:"isExtraHours"`
}

// TimeEntry is a finalized record of worked time
type TimeEntry struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        time.Time  `json:"endTime"`
	Duration       int64      `json:"duration"`
	Source         Source     `json:"source"`
	Description    *string    `json:"description,omitempty"`
	PausedDuration int64      `json:"pausedDuration"`
	StopReason     StopReason `json:"stopReason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// TimeTracking is the timer sub-state owned by an item.
// It is only mutated through the transition methods in transitions.go so that
// TotalTimeSpent always equals the sum of TimeEntries durations.
type TimeTracking struct {
	ActiveTimeEntries []ActiveTimeEntry `json:"activeTimeEntries"`
	TimeEntries       []TimeEntry       `json:"timeEntries"`
	TotalTimeSpent    int64             `json:"totalTimeSpent"`
}

// Item is a tracked work item together with its timer sub-state
type Item struct {
	ID           string       `json:"id"`
	Key          string       `json:"key"`
	ProjectID    string       `json:"projectId"`
	ParentID     *string      `json:"parentId,omitempty"`
	Title        string       `json:"title"`
	TimeTracking TimeTracking `json:"timeTracking"`
	Version      int64        `json:"version"`
}

// ItemRegistration is the host-owned part of an Item
type ItemRegistration struct {
	ID        string  `json:"id"`
	Key       string  `json:"key"`
	ProjectID string  `json:"projectId"`
	ParentID  *string `json:"parentId,omitempty"`
	Title     string  `json:"title"`
}

func (r *ItemRegistration) normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Key = strings.TrimSpace(r.Key)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	if r.ParentID != nil {
		parent := strings.TrimSpace(*r.ParentID)
		if parent == "" {
			r.ParentID = nil
		} else {
			r.ParentID = &parent
		}
	}
}

// Validate requires an id, key and project, and rejects an item that is its own parent
func (r ItemRegistration) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	case r.Key == "":
		return fmt.Errorf("%w: key is required", ErrInvalidItem)
	case r.ProjectID == "":
		return fmt.Errorf("%w: projectId is required", ErrInvalidItem)
	case r.ParentID != nil && *r.ParentID == r.ID:
		return fmt.Errorf("%w: item cannot be its own parent", ErrInvalidItem)
	}
	return nil
}

// StartOptions tunes StartTimer
type StartOptions struct {
	// ExtraHours flags the session as worked outside normal hours.
	ExtraHours bool
}

// EntryPatch carries the editable fields of a TimeEntry; nil fields are left unchanged
type EntryPatch struct {
	Duration    *int64  `json:"duration,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TimerStatus is the read model returned by GetTimerStatus
type TimerStatus struct {
	IsRunning       bool       `json:"isRunning"`
	IsPaused        bool       `json:"isPaused"`
	CurrentDuration int64      `json:"currentDuration"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	IsExtraHours    bool       `json:"isExtraHours"`
}

// ActiveTimer is an active entry together with the item that owns it
type ActiveTimer struct {
	ItemID          string          `json:"itemId"`
	ItemKey         string          `json:"itemKey"`
	ProjectID       string          `json:"projectId"`
	Entry           ActiveTimeEntry `json:"entry"`
	CurrentDuration int64           `json:"currentDuration"`
}

// FinalizeResult is returned by FinalizeActiveEntry
type FinalizeResult struct {
	ItemID    string    `json:"itemId"`
	ItemKey   string    `json:"itemKey"`
	ProjectID string    `json:"projectId"`
	Entry     TimeEntry `json:"entry"`
}
