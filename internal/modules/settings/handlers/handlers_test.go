package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/worktime/internal/identity"
	"github.com/aristath/worktime/internal/modules/settings"
	testutil "github.com/aristath/worktime/internal/testing"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	db, _ := testutil.NewTestDB(t, "settings_handlers")
	log := zerolog.New(nil).Level(zerolog.Disabled)
	service := settings.NewService(settings.NewRepository(db.Conn(), log), settings.DefaultTimerSettings(""), nil, log)

	router := chi.NewRouter()
	router.Use(identity.Middleware)
	router.Route("/api", func(r chi.Router) {
		NewHandler(service, log).RegisterRoutes(r)
	})
	return router
}

func request(h http.Handler, method, body, user, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/settings/timer", strings.NewReader(body))
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
	}
	if role != "" {
		req.Header.Set(identity.HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleGetTimer(t *testing.T) {
	router := setupRouter(t)

	w := request(router, http.MethodGet, "", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data settings.TimerSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 17, response.Data.AutoStopHour)
	assert.Equal(t, 30, response.Data.AutoStopMinute)
	assert.Equal(t, "Europe/Madrid", response.Data.AutoStopTimezone)
}

func TestHandleUpdateTimer(t *testing.T) {
	router := setupRouter(t)

	w := request(router, http.MethodPut, `{"autoStopHour":19}`, "alice", "member")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(router, http.MethodPut, `{"autoStopHour":30}`, "root", "admin")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(router, http.MethodPut, `{"autoStopHour":19,"autoStopTimezone":"Asia/Tokyo"}`, "root", "admin")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data settings.TimerSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 19, response.Data.AutoStopHour)
	assert.Equal(t, 30, response.Data.AutoStopMinute, "omitted fields are preserved")
	assert.Equal(t, "Asia/Tokyo", response.Data.AutoStopTimezone)
}
