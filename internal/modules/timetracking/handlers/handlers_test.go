package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/worktime/internal/identity"
	"github.com/aristath/worktime/internal/modules/timetracking"
	testutil "github.com/aristath/worktime/internal/testing"
)

func setupRouter(t *testing.T) (http.Handler, *testutil.Clock) {
	t.Helper()

	db, _ := testutil.NewTestDB(t, "timetracking_handlers")
	testutil.InsertItems(t, db, testutil.ItemFixture{ID: "item-1", Key: "WT-1", ProjectID: "proj-1"})

	log := zerolog.New(nil).Level(zerolog.Disabled)
	clock := testutil.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	service := timetracking.NewService(timetracking.NewRepository(db.Conn(), log), nil, log)
	service.SetClock(clock.Now)

	router := chi.NewRouter()
	router.Use(identity.Middleware)
	router.Route("/api", func(r chi.Router) {
		NewHandler(service, log).RegisterRoutes(r)
	})
	return router, clock
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
	}
	if user == "admin" {
		req.Header.Set(identity.HeaderUserRole, "admin")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response should carry a data object: %s", w.Body.String())
	return data
}

func TestTimerLifecycle(t *testing.T) {
	router, clock := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/items/item-1/timer/start", "alice", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/start", "alice", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	clock.Advance(10 * time.Minute)
	w = do(t, router, http.MethodGet, "/api/items/item-1/timer", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeData(t, w)
	assert.Equal(t, true, status["isRunning"])
	assert.Equal(t, float64(600), status["currentDuration"])

	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/pause", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/pause", "alice", "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	clock.Advance(5 * time.Minute)
	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/resume", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	clock.Advance(5 * time.Minute)
	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/stop", "alice", `{"description":"standup notes"}`)
	require.Equal(t, http.StatusOK, w.Code)
	entry := decodeData(t, w)
	assert.Equal(t, float64(900), entry["duration"])
	assert.Equal(t, "standup notes", entry["description"])

	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/stop", "alice", "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestHeartbeat(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/items/item-1/timer/heartbeat", "bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeData(t, w)["updated"])

	do(t, router, http.MethodPost, "/api/items/item-1/timer/start", "bob", "")
	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/heartbeat", "bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["updated"])
}

func TestTimeEntries(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/items/item-1/time-entries", "alice", `{"duration":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/items/item-1/time-entries", "alice", `{"duration":1800}`)
	require.Equal(t, http.StatusCreated, w.Code)
	entryID := decodeData(t, w)["id"].(string)
	path := fmt.Sprintf("/api/items/item-1/time-entries/%s", entryID)

	w = do(t, router, http.MethodPatch, path, "mallory", `{"duration":60}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodPatch, path, "alice", `{"duration":2400}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2400), decodeData(t, w)["duration"])

	w = do(t, router, http.MethodGet, "/api/items/item-1/time-entries", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodDelete, path, "mallory", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, router, http.MethodDelete, path, "admin", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodDelete, path, "admin", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMissingCallerAndItem(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/items/item-1/timer/start", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Missing X-User-ID header"}`, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/items/nope/timer/start", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/items/item-1/timer/stop", "alice", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterItem(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{"key":"WT-2","projectId":"proj-1","parentId":"item-1","title":"Checkout"}`
	w := do(t, router, http.MethodPut, "/api/items/item-2", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, router, http.MethodPut, "/api/items/item-2", "alice", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodPut, "/api/items/item-2", "admin", `{"key":"WT-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "projectId is required")

	w = do(t, router, http.MethodPut, "/api/items/item-2", "admin", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item := decodeData(t, w)
	assert.Equal(t, "WT-2", item["key"])
	assert.Equal(t, "item-1", item["parentId"])

	w = do(t, router, http.MethodPost, "/api/items/item-2/timer/start", "alice", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/items/item-2", "admin", `{"key":"WT-2","projectId":"proj-1","title":"Checkout v2"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/items/item-2", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	item = decodeData(t, w)
	assert.Equal(t, "Checkout v2", item["title"])
	tracking := item["timeTracking"].(map[string]interface{})
	assert.Len(t, tracking["activeTimeEntries"], 1, "re-registration keeps the running timer")

	w = do(t, router, http.MethodGet, "/api/items/nope", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveTimers(t *testing.T) {
	router, _ := setupRouter(t)

	do(t, router, http.MethodPost, "/api/items/item-1/timer/start", "alice", `{"extraHours":true}`)

	w := do(t, router, http.MethodGet, "/api/timers/active?userId=alice", "bob", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, http.MethodGet, "/api/timers/active?userId=alice", "admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Data []timetracking.ActiveTimer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 1)
	assert.Equal(t, "WT-1", response.Data[0].ItemKey)
	assert.True(t, response.Data[0].Entry.IsExtraHours)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", timetracking.ErrItemNotFound), http.StatusNotFound},
		{timetracking.ErrTimerAlreadyRunning, http.StatusConflict},
		{timetracking.ErrTimerNotPaused, http.StatusPreconditionFailed},
		{timetracking.ErrForbidden, http.StatusForbidden},
		{timetracking.ErrInvalidDuration, http.StatusBadRequest},
		{timetracking.ErrInvalidItem, http.StatusBadRequest},
		{timetracking.ErrStartedAfterCutoff, http.StatusPreconditionFailed},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
