// Package handlers provides HTTP handlers for timer settings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/identity"
	"github.com/aristath/worktime/internal/modules/settings"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetTimer handles GET /api/settings/timer
func (h *Handler) HandleGetTimer(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.GetTimerSettings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get timer settings")
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": current})
}

// HandleUpdateTimer handles PUT /api/settings/timer (admin only).
// Omitted fields keep their current value.
func (h *Handler) HandleUpdateTimer(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.GetTimerSettings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get timer settings")
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateTimerSettings(r.Context(), current)
	if errors.Is(err, settings.ErrInvalidSettings) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to update timer settings")
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}

	if caller, ok := identity.FromContext(r.Context()); ok {
		h.log.Info().Str("admin", caller.UserID).Msg("Timer settings changed")
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": updated})
}

// RegisterRoutes registers settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings/timer", func(r chi.Router) {
		r.Get("/", h.HandleGetTimer)
		r.With(identity.RequireAdmin).Put("/", h.HandleUpdateTimer)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
