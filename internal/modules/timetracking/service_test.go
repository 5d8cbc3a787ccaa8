package timetracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/worktime/internal/events"
	testutil "github.com/aristath/worktime/internal/testing"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.EventType
}

func (r *recordingEmitter) EmitTyped(eventType events.EventType, module string, data events.EventData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingEmitter) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.events...)
}

type fixedPolicy bool

func (p fixedPolicy) IsOffHours(context.Context, time.Time) bool { return bool(p) }

type engineFixture struct {
	service *Service
	repo    *Repository
	clock   *testutil.Clock
	emitter *recordingEmitter
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()

	db, _ := testutil.NewTestDB(t, "timetracking")
	testutil.InsertItems(t, db,
		testutil.ItemFixture{ID: "item-1", Key: "PRJ-1", ProjectID: "proj-1"},
		testutil.ItemFixture{ID: "item-2", Key: "PRJ-2", ProjectID: "proj-1"},
	)

	repo := NewRepository(db.Conn(), zerolog.Nop())
	emitter := &recordingEmitter{}
	clock := testutil.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	service := NewService(repo, emitter, zerolog.Nop())
	service.SetClock(clock.Now)

	return &engineFixture{service: service, repo: repo, clock: clock, emitter: emitter}
}

// assertConsistent checks the stored sub-state after a mutation
func (f *engineFixture) assertConsistent(t *testing.T, itemID string) *Item {
	t.Helper()
	item, err := f.repo.Get(context.Background(), itemID)
	require.NoError(t, err)
	assert.True(t, item.TimeTracking.Consistent(), "totalTimeSpent must equal the sum of entry durations")
	return item
}

func TestService_RegisterItem(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	blank := "  "
	item, err := f.service.RegisterItem(ctx, ItemRegistration{ID: " item-9 ", Key: "PRJ-9", ProjectID: "proj-3", ParentID: &blank, Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "item-9", item.ID)
	assert.Nil(t, item.ParentID)
	assert.Equal(t, int64(1), item.Version)

	active, err := f.service.StartTimer(ctx, "item-9", "u1", StartOptions{})
	require.NoError(t, err)

	item, err = f.service.RegisterItem(ctx, ItemRegistration{ID: "item-9", Key: "PRJ-10", ProjectID: "proj-3", Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "PRJ-10", item.Key)
	require.Len(t, item.TimeTracking.ActiveTimeEntries, 1)
	assert.Equal(t, active.ID, item.TimeTracking.ActiveTimeEntries[0].ID)

	self := "item-9"
	for _, reg := range []ItemRegistration{
		{ID: "", Key: "K", ProjectID: "p"},
		{ID: "x", Key: " ", ProjectID: "p"},
		{ID: "x", Key: "K", ProjectID: ""},
		{ID: "item-9", Key: "K", ProjectID: "p", ParentID: &self},
	} {
		_, err := f.service.RegisterItem(ctx, reg)
		assert.ErrorIs(t, err, ErrInvalidItem)
		assert.Equal(t, KindInvalid, KindOf(err))
	}
}

func TestService_PauseResumeScenario(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	f.assertConsistent(t, "item-1")

	f.clock.Advance(10 * time.Minute) // 09:10
	_, err = f.service.PauseTimer(ctx, "item-1", "u1")
	require.NoError(t, err)
	f.assertConsistent(t, "item-1")

	f.clock.Advance(5 * time.Minute) // 09:15
	_, err = f.service.ResumeTimer(ctx, "item-1", "u1")
	require.NoError(t, err)
	f.assertConsistent(t, "item-1")

	f.clock.Advance(5 * time.Minute) // 09:20
	entry, err := f.service.StopTimer(ctx, "item-1", "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(900), entry.Duration)
	assert.Equal(t, int64(300), entry.PausedDuration)
	assert.Equal(t, SourceAutomatic, entry.Source)
	assert.Equal(t, StopReasonUser, entry.StopReason)

	item := f.assertConsistent(t, "item-1")
	assert.Empty(t, item.TimeTracking.ActiveTimeEntries)
	assert.Equal(t, int64(900), item.TimeTracking.TotalTimeSpent)

	assert.Equal(t, []events.EventType{
		events.TimerStarted, events.TimerPaused, events.TimerResumed, events.TimerStopped,
	}, f.emitter.types())
}

func TestService_ImmediateStopYieldsZero(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)

	entry, err := f.service.StopTimer(ctx, "item-1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.Duration)
	f.assertConsistent(t, "item-1")
}

func TestService_PauseThenStopExcludesPause(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	_, err = f.service.PauseTimer(ctx, "item-1", "u1")
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)

	description := "reviewed pull request"
	entry, err := f.service.StopTimer(ctx, "item-1", "u1", &description)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), entry.Duration)
	assert.Equal(t, int64(2700), entry.PausedDuration)
	require.NotNil(t, entry.Description)
	assert.Equal(t, description, *entry.Description)
}

func TestService_InvalidTransitions(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.service.StartTimer(ctx, "missing", "u1", StartOptions{})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.service.PauseTimer(ctx, "item-1", "u1")
	assert.ErrorIs(t, err, ErrTimerNotRunning)
	_, err = f.service.StopTimer(ctx, "item-1", "u1", nil)
	assert.ErrorIs(t, err, ErrTimerNotRunning)

	_, err = f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	_, err = f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	assert.ErrorIs(t, err, ErrTimerAlreadyRunning)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.service.ResumeTimer(ctx, "item-1", "u1")
	assert.ErrorIs(t, err, ErrTimerNotPaused)

	// Another user may hold an independent timer on the same item
	_, err = f.service.StartTimer(ctx, "item-1", "u2", StartOptions{})
	require.NoError(t, err)

	item := f.assertConsistent(t, "item-1")
	assert.Len(t, item.TimeTracking.ActiveTimeEntries, 2)
}

func TestService_ManualEntries(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.service.AddManualTimeEntry(ctx, "item-1", "u1", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)

	entry, err := f.service.AddManualTimeEntry(ctx, "item-1", "u1", 3600, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, entry.Source)
	assert.Equal(t, entry.StartTime, entry.EndTime)

	item := f.assertConsistent(t, "item-1")
	assert.Equal(t, int64(3600), item.TimeTracking.TotalTimeSpent)
	assert.Len(t, item.TimeTracking.ActiveTimeEntries, 1, "manual entries never touch active timers")
}

func TestService_UpdateAndDeleteEntries(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	entry, err := f.service.AddManualTimeEntry(ctx, "item-1", "owner", 600, nil)
	require.NoError(t, err)

	newDuration := int64(1200)
	_, err = f.service.UpdateTimeEntry(ctx, "item-1", entry.ID, "someone", false, EntryPatch{Duration: &newDuration})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.service.UpdateTimeEntry(ctx, "item-1", entry.ID, "owner", false, EntryPatch{Duration: &newDuration})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), updated.Duration)
	assert.NotNil(t, updated.UpdatedAt)
	item := f.assertConsistent(t, "item-1")
	assert.Equal(t, int64(1200), item.TimeTracking.TotalTimeSpent)

	err = f.service.DeleteTimeEntry(ctx, "item-1", entry.ID, "someone", false)
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.service.DeleteTimeEntry(ctx, "item-1", "nope", "owner", false)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, f.service.DeleteTimeEntry(ctx, "item-1", entry.ID, "admin", true))
	item = f.assertConsistent(t, "item-1")
	assert.Equal(t, int64(0), item.TimeTracking.TotalTimeSpent)
	assert.Empty(t, item.TimeTracking.TimeEntries)
}

func TestService_UpdateActivity(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	changed, err := f.service.UpdateActivity(ctx, "item-1", "u1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)

	f.clock.Advance(7 * time.Minute)
	changed, err = f.service.UpdateActivity(ctx, "item-1", "u1")
	require.NoError(t, err)
	assert.True(t, changed)

	item, err := f.repo.Get(ctx, "item-1")
	require.NoError(t, err)
	active, ok := item.TimeTracking.ActiveFor("u1")
	require.True(t, ok)
	assert.Equal(t, f.clock.Now(), active.LastActivityAt.UTC())

	_, err = f.service.PauseTimer(ctx, "item-1", "u1")
	require.NoError(t, err)
	changed, err = f.service.UpdateActivity(ctx, "item-1", "u1")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestService_GetTimerStatusIsPure(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	status, err := f.service.GetTimerStatus(ctx, "item-1", "u1")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Equal(t, int64(0), status.CurrentDuration)

	_, err = f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	before, err := f.repo.Get(ctx, "item-1")
	require.NoError(t, err)

	f.clock.Advance(25 * time.Minute)
	status, err = f.service.GetTimerStatus(ctx, "item-1", "u1")
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	assert.False(t, status.IsPaused)
	assert.Equal(t, int64(1500), status.CurrentDuration)

	after, err := f.repo.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestService_OffHoursPolicyFlagsExtraHours(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	f.service.SetOffHoursPolicy(fixedPolicy(true))

	entry, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	assert.True(t, entry.IsExtraHours)

	f.service.SetOffHoursPolicy(fixedPolicy(false))
	entry, err = f.service.StartTimer(ctx, "item-2", "u1", StartOptions{ExtraHours: true})
	require.NoError(t, err)
	assert.True(t, entry.IsExtraHours, "explicit flag wins")

	timers, err := f.service.ListActiveTimers(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, timers, 2)
}

func TestService_ConcurrentStopsMaterializeOnce(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	const racers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.StopTimer(ctx, "item-1", "u1", nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.ErrorIs(t, err, ErrTimerNotRunning)
	}

	item := f.assertConsistent(t, "item-1")
	assert.Len(t, item.TimeTracking.TimeEntries, 1)
	assert.Equal(t, int64(3600), item.TimeTracking.TotalTimeSpent)
}

func TestService_FinalizeRacesUserStop(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	active, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.service.StopTimer(ctx, "item-1", "u1", nil)
	require.NoError(t, err)

	_, err = f.service.FinalizeActiveEntry(ctx, "item-1", active.ID, time.Time{}, StopReasonEndOfDay)
	assert.ErrorIs(t, err, ErrEntryAlreadyFinalized)

	item := f.assertConsistent(t, "item-1")
	assert.Len(t, item.TimeTracking.TimeEntries, 1)
}

func TestService_FinalizeUsesCutoff(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	active, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	cutoff := f.clock.Now().Add(90 * time.Minute)
	f.clock.Set(cutoff.Add(40 * time.Second))

	result, err := f.service.FinalizeActiveEntry(ctx, "item-1", active.ID, cutoff, StopReasonEndOfDay)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), result.Entry.Duration)
	assert.Equal(t, "PRJ-1", result.ItemKey)
	assert.Equal(t, "proj-1", result.ProjectID)
	assert.Equal(t, StopReasonEndOfDay, result.Entry.StopReason)
}

func TestService_FinalizeLeavesEntryStartedAfterCutoff(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	cutoff := f.clock.Now()
	f.clock.Advance(time.Minute)
	active, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	_, err = f.service.FinalizeActiveEntry(ctx, "item-1", active.ID, cutoff, StopReasonEndOfDay)
	assert.ErrorIs(t, err, ErrStartedAfterCutoff)
	assert.Equal(t, KindPreconditionFailed, KindOf(err))

	item := f.assertConsistent(t, "item-1")
	assert.Empty(t, item.TimeTracking.TimeEntries)
	require.Len(t, item.TimeTracking.ActiveTimeEntries, 1)
	assert.Equal(t, active.ID, item.TimeTracking.ActiveTimeEntries[0].ID)

	_, err = f.service.FinalizeActiveEntry(ctx, "item-1", active.ID, active.StartTime, StopReasonEndOfDay)
	assert.ErrorIs(t, err, ErrStartedAfterCutoff, "a cutoff equal to the start does not stop it either")
}

func TestService_AutoPauseIsGuarded(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	active, err := f.service.StartTimer(ctx, "item-1", "u1", StartOptions{})
	require.NoError(t, err)
	lastSeen := f.clock.Now()

	f.clock.Advance(10 * time.Minute)
	_, err = f.service.AutoPause(ctx, "item-1", active.ID, lastSeen.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrTimerActive)

	f.clock.Advance(30 * time.Minute)
	paused, err := f.service.AutoPause(ctx, "item-1", active.ID, f.clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)
	require.NotNil(t, paused.PausedAt)
	assert.True(t, lastSeen.Equal(*paused.PausedAt), "pause is backdated to the last heartbeat")

	_, err = f.service.AutoPause(ctx, "item-1", active.ID, f.clock.Now())
	assert.ErrorIs(t, err, ErrTimerAlreadyPaused)

	_, err = f.service.AutoPause(ctx, "item-1", "gone", f.clock.Now())
	assert.ErrorIs(t, err, ErrEntryAlreadyFinalized)

	status, err := f.service.GetTimerStatus(ctx, "item-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.CurrentDuration, "idle time is not counted")
}

func TestService_ListTimeEntriesNewestFirst(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	first, err := f.service.AddManualTimeEntry(ctx, "item-1", "u1", 60, nil)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.service.AddManualTimeEntry(ctx, "item-1", "u1", 120, nil)
	require.NoError(t, err)

	entries, err := f.service.ListTimeEntries(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}
