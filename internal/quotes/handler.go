package quotes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/shared"
)

type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, idempotency: idempotency}
}

func tenantID(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}

// guardIdempotency honors an optional Idempotency-Key header on negotiation
// actions, so retried accept/reject/counter requests do not double-apply.
func (h *Handler) guardIdempotency(w http.ResponseWriter, r *http.Request, operation string) bool {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), tenantID(r), key, operation); err != nil {
		if err == shared.ErrIdempotencyConflict {
			httpx.RespondError(w, fmt.Errorf("request already processed: %w", httpx.ErrConflict))
			return false
		}
		h.logger.Error("idempotency check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	req.TenantID = tenantID(r)
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	quote, err := h.service.Start(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ListByOrder(r.Context(), tenantID(r), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": results})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), tenantID(r), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Send(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) MarkPendingResponse(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.MarkPendingResponse(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	if !h.guardIdempotency(w, r, "quotes.accept") {
		return
	}
	var req AcceptQuoteRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
			return
		}
	}

	quote, err := h.service.Accept(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	if !h.guardIdempotency(w, r, "quotes.reject") {
		return
	}
	var req RejectQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	quote, err := h.service.Reject(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Counter(w http.ResponseWriter, r *http.Request) {
	if !h.guardIdempotency(w, r, "quotes.counter") {
		return
	}
	var req CounterQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	quote, err := h.service.Counter(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	var req ExtendExpirationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	quote, err := h.service.ExtendExpiration(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}
