package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/aristath/worktime/internal/identity"
)

// RegisterRoutes registers item, timer and time entry routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/items/{itemID}", h.HandleGetItem)
	r.With(identity.RequireAdmin).Put("/items/{itemID}", h.HandleRegisterItem)

	r.Route("/items/{itemID}/timer", func(r chi.Router) {
		r.Get("/", h.HandleStatus)
		r.Post("/start", h.HandleStart)
		r.Post("/pause", h.HandlePause)
		r.Post("/resume", h.HandleResume)
		r.Post("/stop", h.HandleStop)
		r.Post("/heartbeat", h.HandleHeartbeat)
	})

	r.Route("/items/{itemID}/time-entries", func(r chi.Router) {
		r.Get("/", h.HandleListEntries)
		r.Post("/", h.HandleAddEntry)
		r.Patch("/{entryID}", h.HandleUpdateEntry)
		r.Delete("/{entryID}", h.HandleDeleteEntry)
	})

	r.Get("/timers/active", h.HandleActiveTimers)
}
