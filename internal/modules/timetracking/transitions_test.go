package timetracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestElapsedSeconds(t *testing.T) {
	pausedAt := at(50 * time.Minute)
	beforeStart := at(-10 * time.Minute)

	testCases := []struct {
		name     string
		entry    ActiveTimeEntry
		end      time.Time
		expected int64
	}{
		{
			name:     "running, no pauses",
			entry:    ActiveTimeEntry{StartTime: t0},
			end:      at(20 * time.Minute),
			expected: 1200,
		},
		{
			name:     "completed pauses are subtracted",
			entry:    ActiveTimeEntry{StartTime: t0, AccumulatedPausedTime: 300},
			end:      at(20 * time.Minute),
			expected: 900,
		},
		{
			name:     "open pause is subtracted up to end",
			entry:    ActiveTimeEntry{StartTime: t0, IsPaused: true, PausedAt: &pausedAt},
			end:      at(60 * time.Minute),
			expected: 3000,
		},
		{
			name:     "pause starting after end is ignored",
			entry:    ActiveTimeEntry{StartTime: t0, IsPaused: true, PausedAt: &pausedAt},
			end:      at(40 * time.Minute),
			expected: 2400,
		},
		{
			name:     "end before start clamps to zero",
			entry:    ActiveTimeEntry{StartTime: t0},
			end:      at(-time.Minute),
			expected: 0,
		},
		{
			name:     "pause before start clamps to zero",
			entry:    ActiveTimeEntry{StartTime: t0, IsPaused: true, PausedAt: &beforeStart},
			end:      at(5 * time.Minute),
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, elapsedSeconds(tc.entry, tc.end))
		})
	}
}

func TestTimeTracking_StateMachine(t *testing.T) {
	var tt TimeTracking

	_, err := tt.pause("u1", t0)
	assert.ErrorIs(t, err, ErrTimerNotRunning)
	_, err = tt.resume("u1", t0)
	assert.ErrorIs(t, err, ErrTimerNotRunning)

	_, err = tt.start("a1", "u1", t0, false)
	require.NoError(t, err)
	_, err = tt.start("a2", "u1", t0, false)
	assert.ErrorIs(t, err, ErrTimerAlreadyRunning)

	_, err = tt.resume("u1", at(time.Minute))
	assert.ErrorIs(t, err, ErrTimerNotPaused)

	_, err = tt.pause("u1", at(10*time.Minute))
	require.NoError(t, err)
	_, err = tt.pause("u1", at(11*time.Minute))
	assert.ErrorIs(t, err, ErrTimerAlreadyPaused)

	resumed, err := tt.resume("u1", at(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(300), resumed.AccumulatedPausedTime)
	assert.Equal(t, at(15*time.Minute), resumed.LastActivityAt)
	assert.Nil(t, resumed.PausedAt)

	entry := tt.finalize(tt.activeIndex("u1"), "e1", at(20*time.Minute), at(20*time.Minute), StopReasonUser, nil)
	assert.Equal(t, int64(900), entry.Duration)
	assert.Equal(t, int64(300), entry.PausedDuration)
	assert.Empty(t, tt.ActiveTimeEntries)
	assert.True(t, tt.Consistent())
}

func TestTimeTracking_IndependentUsers(t *testing.T) {
	var tt TimeTracking

	_, err := tt.start("a1", "u1", t0, false)
	require.NoError(t, err)
	_, err = tt.start("a2", "u2", t0, false)
	require.NoError(t, err)

	assert.Len(t, tt.ActiveTimeEntries, 2)
	assert.True(t, tt.Consistent())
}

func TestTimeTracking_TouchIgnoresPausedEntries(t *testing.T) {
	var tt TimeTracking
	assert.False(t, tt.touch("u1", t0))

	_, _ = tt.start("a1", "u1", t0, false)
	assert.True(t, tt.touch("u1", at(time.Minute)))

	_, _ = tt.pause("u1", at(2*time.Minute))
	assert.False(t, tt.touch("u1", at(3*time.Minute)))

	active, _ := tt.ActiveFor("u1")
	assert.Equal(t, at(time.Minute), active.LastActivityAt)
}

func TestTimeTracking_UpdateAndDeleteEntry(t *testing.T) {
	tt := TimeTracking{}
	tt.appendEntry(TimeEntry{ID: "e1", UserID: "owner", Duration: 600})
	tt.appendEntry(TimeEntry{ID: "e2", UserID: "other", Duration: 100})

	_, err := tt.updateEntry("missing", "owner", false, EntryPatch{}, t0)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	newDuration := int64(900)
	_, err = tt.updateEntry("e1", "intruder", false, EntryPatch{Duration: &newDuration}, t0)
	assert.ErrorIs(t, err, ErrForbidden)

	zero := int64(0)
	_, err = tt.updateEntry("e1", "owner", false, EntryPatch{Duration: &zero}, t0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	updated, err := tt.updateEntry("e1", "owner", false, EntryPatch{Duration: &newDuration}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(900), updated.Duration)
	assert.Equal(t, int64(1000), tt.TotalTimeSpent)
	assert.True(t, tt.Consistent())

	_, err = tt.deleteEntry("e2", "owner", false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = tt.deleteEntry("e2", "admin", true)
	require.NoError(t, err)
	assert.Equal(t, int64(900), tt.TotalTimeSpent)
	assert.True(t, tt.Consistent())
}

func TestTimeTracking_DeleteFloorsTotalAtZero(t *testing.T) {
	tt := TimeTracking{
		TimeEntries:    []TimeEntry{{ID: "e1", UserID: "u1", Duration: 500}},
		TotalTimeSpent: 200, // drifted legacy total
	}

	_, err := tt.deleteEntry("e1", "u1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tt.TotalTimeSpent)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrItemNotFound))
	assert.Equal(t, KindNotFound, KindOf(ErrEntryNotFound))
	assert.Equal(t, KindConflict, KindOf(ErrTimerAlreadyRunning))
	assert.Equal(t, KindPreconditionFailed, KindOf(ErrTimerNotRunning))
	assert.Equal(t, KindPreconditionFailed, KindOf(ErrTimerAlreadyPaused))
	assert.Equal(t, KindPreconditionFailed, KindOf(ErrTimerNotPaused))
	assert.Equal(t, KindForbidden, KindOf(ErrForbidden))
	assert.Equal(t, KindInvalid, KindOf(ErrInvalidDuration))
	assert.Equal(t, KindInternal, KindOf(ErrVersionConflict))
}
