package timeline

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders/{orderID}/timeline", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Get("/stats", h.Stats)
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ForOrder(r.Context(), r.Header.Get("X-Tenant-ID"), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.StatsForOrder(r.Context(), r.Header.Get("X-Tenant-ID"), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
