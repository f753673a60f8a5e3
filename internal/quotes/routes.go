package quotes

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Show)
			r.Post("/send", h.Send)
			r.Post("/acknowledge", h.MarkPendingResponse)
			r.Post("/accept", h.Accept)
			r.Post("/reject", h.Reject)
			r.Post("/counter", h.Counter)
			r.Post("/extend", h.Extend)
		})
	})
	r.Route("/orders/{orderID}/quotes", func(r chi.Router) {
		r.Get("/", h.ListByOrder)
		r.Get("/stats", h.Stats)
	})
}
