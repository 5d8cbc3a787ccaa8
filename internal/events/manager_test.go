package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EmitTyped_DeliversMapData(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var received []*Event
	bus.Subscribe(TimerAutoStopped, func(event *Event) {
		received = append(received, event)
	})

	manager.EmitTyped(TimerAutoStopped, "scheduler", &TimerAutoStoppedData{
		UserID:          "u1",
		ProjectID:       "p1",
		ItemID:          "i1",
		ItemKey:         "PRJ-1",
		Reason:          "end_of_day",
		DurationSeconds: 5400,
	})

	require.Len(t, received, 1)
	event := received[0]
	assert.Equal(t, TimerAutoStopped, event.Type)
	assert.Equal(t, "scheduler", event.Module)
	assert.Equal(t, "u1", event.Data["user_id"])
	assert.Equal(t, "PRJ-1", event.Data["item_key"])
	assert.Equal(t, float64(5400), event.Data["duration_seconds"])
}

func TestBus_OnlyMatchingTypesReceive(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	paused, stopped := 0, 0
	bus.Subscribe(TimerPaused, func(*Event) { paused++ })
	bus.Subscribe(TimerStopped, func(*Event) { stopped++ })

	bus.Emit(TimerPaused, "timetracking", nil)
	bus.Emit(TimerPaused, "timetracking", nil)

	assert.Equal(t, 2, paused)
	assert.Equal(t, 0, stopped)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	id := bus.Subscribe(TimerStarted, func(*Event) { calls++ })
	bus.Emit(TimerStarted, "timetracking", nil)
	bus.Unsubscribe(TimerStarted, id)
	bus.Emit(TimerStarted, "timetracking", nil)

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingHandlerDoesNotBreakEmitter(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := false
	bus.Subscribe(ErrorOccurred, func(*Event) { panic("boom") })
	bus.Subscribe(ErrorOccurred, func(*Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Emit(ErrorOccurred, "test", nil)
	})
	assert.True(t, delivered)
}

func TestTimerData_EventTypeFollowsField(t *testing.T) {
	data := &TimerData{ItemID: "i1", UserID: "u1", Type: TimerResumed}
	assert.Equal(t, TimerResumed, data.EventType())
}
