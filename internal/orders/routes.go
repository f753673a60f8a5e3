package orders

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stages", h.Stages)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Show)
			r.Delete("/", h.Delete)
			r.Get("/progress", h.Progress)
			r.Post("/transition", h.Transition)
			r.Post("/payments", h.RecordPayment)
			r.Post("/cancel", h.Cancel)
		})
	})
}
