package orders

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/workflow"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func tenantID(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListOrdersRequest{TenantID: tenantID(r)}

	q := r.URL.Query()
	if v := q.Get("customer_id"); v != "" {
		req.CustomerID = &v
	}
	if v := q.Get("status"); v != "" {
		status := workflow.Status(v)
		req.Status = &status
	}
	if v := q.Get("stage"); v != "" {
		stage := workflow.Stage(v)
		if _, ok := workflow.StageDetails(stage); !ok {
			httpx.RespondError(w, fmt.Errorf("unknown stage %q: %w", v, httpx.ErrValidation))
			return
		}
		req.Stage = &stage
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	results, pagination, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     results,
		"pagination": pagination,
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	req.TenantID = tenantID(r)
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create order failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Progress(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	order, err := h.service.TransitionStage(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	order, err := h.service.RecordPayment(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid body: %w", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, httpx.ErrValidation))
		return
	}

	order, err := h.service.Cancel(r.Context(), tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stages exposes the workflow catalog so clients can render the pipeline
// without hardcoding it.
func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"stages": workflow.CatalogInfo(),
		"total":  workflow.TotalStages,
	})
}
