// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Timer lifecycle
	TimerStarted     EventType = "TIMER_STARTED"
	TimerPaused      EventType = "TIMER_PAUSED"
	TimerResumed     EventType = "TIMER_RESUMED"
	TimerStopped     EventType = "TIMER_STOPPED"
	TimerAutoPaused  EventType = "TIMER_AUTO_PAUSED"
	TimerAutoStopped EventType = "TIMER_AUTO_STOPPED"

	// Time entries
	TimeEntryAdded   EventType = "TIME_ENTRY_ADDED"
	TimeEntryUpdated EventType = "TIME_ENTRY_UPDATED"
	TimeEntryDeleted EventType = "TIME_ENTRY_DELETED"

	// System
	SettingsChanged EventType = "SETTINGS_CHANGED"
	SweepCompleted  EventType = "SWEEP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, used by stream subscribers that want everything
var AllEventTypes = []EventType{
	TimerStarted, TimerPaused, TimerResumed, TimerStopped, TimerAutoPaused, TimerAutoStopped,
	TimeEntryAdded, TimeEntryUpdated, TimeEntryDeleted,
	SettingsChanged, SweepCompleted, ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type" msgpack:"type"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	Data      map[string]interface{} `json:"data" msgpack:"data"`
	Module    string                 `json:"module" msgpack:"module"`
}
