package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TimerData is carried by user-driven timer transitions
type TimerData struct {
	ItemID  string    `json:"item_id"`
	UserID  string    `json:"user_id"`
	EntryID string    `json:"entry_id"`
	Type    EventType `json:"-"`
}

// EventType returns the event type for TimerData
func (d *TimerData) EventType() EventType {
	return d.Type
}

// TimerStoppedData contains data for TimerStopped events
type TimerStoppedData struct {
	ItemID          string `json:"item_id"`
	UserID          string `json:"user_id"`
	TimeEntryID     string `json:"time_entry_id"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// EventType returns the event type for TimerStoppedData
func (d *TimerStoppedData) EventType() EventType {
	return TimerStopped
}

// TimerAutoPausedData contains data for TimerAutoPaused events
type TimerAutoPausedData struct {
	ItemID   string `json:"item_id"`
	UserID   string `json:"user_id"`
	PausedAt string `json:"paused_at"`
}

// EventType returns the event type for TimerAutoPausedData
func (d *TimerAutoPausedData) EventType() EventType {
	return TimerAutoPaused
}

// TimerAutoStoppedData is the external notification emitted when a sweep force-stops a timer
type TimerAutoStoppedData struct {
	UserID          string `json:"user_id"`
	ProjectID       string `json:"project_id"`
	ItemID          string `json:"item_id"`
	ItemKey         string `json:"item_key"`
	Reason          string `json:"reason"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// EventType returns the event type for TimerAutoStoppedData
func (d *TimerAutoStoppedData) EventType() EventType {
	return TimerAutoStopped
}

// TimeEntryData contains data for time entry add/update/delete events
type TimeEntryData struct {
	ItemID          string    `json:"item_id"`
	EntryID         string    `json:"entry_id"`
	UserID          string    `json:"user_id"`
	DurationSeconds int64     `json:"duration_seconds"`
	Type            EventType `json:"-"`
}

// EventType returns the event type for TimeEntryData
func (d *TimeEntryData) EventType() EventType {
	return d.Type
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// SweepCompletedData summarizes a scheduler sweep
type SweepCompletedData struct {
	Sweep     string `json:"sweep"`
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
}

// EventType returns the event type for SweepCompletedData
func (d *SweepCompletedData) EventType() EventType {
	return SweepCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
