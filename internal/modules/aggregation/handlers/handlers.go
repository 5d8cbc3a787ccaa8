// Package handlers provides HTTP handlers for time reports.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/identity"
	"github.com/aristath/worktime/internal/modules/aggregation"
	"github.com/aristath/worktime/internal/modules/timetracking"
)

// Handler handles report requests
type Handler struct {
	service *aggregation.Service
	log     zerolog.Logger
}

// NewHandler creates a new aggregation handler
func NewHandler(service *aggregation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "aggregation").Logger(),
	}
}

// HandleItemAggregate handles GET /api/items/{itemID}/time/aggregate
func (h *Handler) HandleItemAggregate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetAggregatedTime(r.Context(), chi.URLParam(r, "itemID"))
	if errors.Is(err, timetracking.ErrItemNotFound) {
		h.writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to aggregate item time")
		h.writeError(w, http.StatusInternalServerError, "Failed to aggregate time")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleProjectStats handles GET /api/projects/{projectID}/time-stats
func (h *Handler) HandleProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetProjectTimeStats(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute project time stats")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(stats))
}

// HandleUserStats handles GET /api/users/{userID}/time-stats.
// Users may read their own stats; admins may read anyone's.
func (h *Handler) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Missing "+identity.HeaderUserID+" header")
		return
	}
	if caller.UserID != userID && !caller.IsAdmin {
		h.writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	stats, err := h.service.GetUserTimeStats(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute user time stats")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(stats))
}

// RegisterRoutes registers report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/items/{itemID}/time/aggregate", h.HandleItemAggregate)
	r.Get("/projects/{projectID}/time-stats", h.HandleProjectStats)
	r.Get("/users/{userID}/time-stats", h.HandleUserStats)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
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
