// Package handlers provides HTTP handlers for timers and time entries.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/identity"
	"github.com/aristath/worktime/internal/modules/timetracking"
)

// Handler handles timer and time entry HTTP requests
type Handler struct {
	service *timetracking.Service
	log     zerolog.Logger
}

// NewHandler creates a new time tracking handler
func NewHandler(service *timetracking.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "timetracking").Logger(),
	}
}

type registerRequest struct {
	Key       string  `json:"key"`
	ProjectID string  `json:"projectId"`
	ParentID  *string `json:"parentId"`
	Title     string  `json:"title"`
}

type startRequest struct {
	ExtraHours bool `json:"extraHours"`
}

type stopRequest struct {
	Description *string `json:"description"`
}

type manualEntryRequest struct {
	Duration    int64   `json:"duration"`
	Description *string `json:"description"`
}

// HandleRegisterItem handles PUT /api/items/{itemID} (admin only).
// The host system calls it to create an item or refresh its metadata.
func (h *Handler) HandleRegisterItem(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.service.RegisterItem(r.Context(), timetracking.ItemRegistration{
		ID:        chi.URLParam(r, "itemID"),
		Key:       req.Key,
		ProjectID: req.ProjectID,
		ParentID:  req.ParentID,
		Title:     req.Title,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(item))
}

// HandleGetItem handles GET /api/items/{itemID}
func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(item))
}

// HandleStart handles POST /api/items/{itemID}/timer/start
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req startRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	entry, err := h.service.StartTimer(r.Context(), chi.URLParam(r, "itemID"), caller.UserID,
		timetracking.StartOptions{ExtraHours: req.ExtraHours})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, envelope(entry))
}

// HandlePause handles POST /api/items/{itemID}/timer/pause
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	entry, err := h.service.PauseTimer(r.Context(), chi.URLParam(r, "itemID"), caller.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(entry))
}

// HandleResume handles POST /api/items/{itemID}/timer/resume
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	entry, err := h.service.ResumeTimer(r.Context(), chi.URLParam(r, "itemID"), caller.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(entry))
}

// HandleStop handles POST /api/items/{itemID}/timer/stop
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req stopRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	entry, err := h.service.StopTimer(r.Context(), chi.URLParam(r, "itemID"), caller.UserID, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(entry))
}

// HandleHeartbeat handles POST /api/items/{itemID}/timer/heartbeat
// A caller without a running timer gets updated=false, not an error.
func (h *Handler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateActivity(r.Context(), chi.URLParam(r, "itemID"), caller.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]bool{"updated": updated}))
}

// HandleStatus handles GET /api/items/{itemID}/timer
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetTimerStatus(r.Context(), chi.URLParam(r, "itemID"), caller.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(status))
}

// HandleAddEntry handles POST /api/items/{itemID}/time-entries
func (h *Handler) HandleAddEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req manualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.AddManualTimeEntry(r.Context(), chi.URLParam(r, "itemID"), caller.UserID, req.Duration, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, envelope(entry))
}

// HandleListEntries handles GET /api/items/{itemID}/time-entries
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListTimeEntries(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(entries))
}

// HandleUpdateEntry handles PATCH /api/items/{itemID}/time-entries/{entryID}
func (h *Handler) HandleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var patch timetracking.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.UpdateTimeEntry(r.Context(), chi.URLParam(r, "itemID"), chi.URLParam(r, "entryID"),
		caller.UserID, caller.IsAdmin, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(entry))
}

// HandleDeleteEntry handles DELETE /api/items/{itemID}/time-entries/{entryID}
func (h *Handler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	err := h.service.DeleteTimeEntry(r.Context(), chi.URLParam(r, "itemID"), chi.URLParam(r, "entryID"),
		caller.UserID, caller.IsAdmin)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleActiveTimers handles GET /api/timers/active
// Admins may inspect another user with ?userId=.
func (h *Handler) HandleActiveTimers(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	userID := caller.UserID
	if other := r.URL.Query().Get("userId"); other != "" && other != caller.UserID {
		if !caller.IsAdmin {
			h.writeError(w, timetracking.ErrForbidden)
			return
		}
		userID = other
	}

	timers, err := h.service.ListActiveTimers(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(timers))
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	c, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "Missing "+identity.HeaderUserID+" header")
	}
	return c, ok
}

// decodeOptional decodes a JSON body if one was sent
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
	return false
}

// StatusFor maps an engine error to its HTTP status code
func StatusFor(err error) int {
	switch timetracking.KindOf(err) {
	case timetracking.KindNotFound:
		return http.StatusNotFound
	case timetracking.KindConflict:
		return http.StatusConflict
	case timetracking.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case timetracking.KindForbidden:
		return http.StatusForbidden
	case timetracking.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Time tracking request failed")
		message = "Internal server error"
	}
	h.writeMessage(w, status, message)
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}
