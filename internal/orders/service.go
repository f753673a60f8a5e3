package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-orders/sentra/internal/observability"
	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/workflow"
)

// quoteMarkup converts an accepted vendor offer into the customer-facing
// quotation amount.
const quoteMarkup = 1.35

type Service struct {
	repo    Repository
	cache   *Cache
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewService(repo Repository, cache *Cache, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, metrics: metrics, logger: logger}
}

func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	now := time.Now()
	number, err := s.repo.GenerateNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	var total int64
	items := make([]OrderItem, 0, len(req.Items))
	for i, itemReq := range req.Items {
		lineTotal := int64(itemReq.Quantity) * itemReq.UnitPrice
		total += lineTotal
		item := OrderItem{
			ID:          uuid.NewString(),
			SKU:         itemReq.SKU,
			Description: itemReq.Description,
			Quantity:    itemReq.Quantity,
			UnitPrice:   itemReq.UnitPrice,
			LineTotal:   lineTotal,
			Position:    itemReq.Position,
		}
		if item.Position == 0 {
			item.Position = i + 1
		}
		items = append(items, item)
	}

	order := Order{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		OrderNumber:   number,
		CustomerID:    req.CustomerID,
		VendorID:      req.VendorID,
		Status:        workflow.StatusDraft,
		PaymentStatus: PaymentUnpaid,
		Currency:      req.Currency,
		TotalAmount:   total,
		Notes:         req.Notes,
		Metadata:      req.Metadata,
		Version:       1,
	}

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, item := range items {
			item.OrderID = order.ID
			if err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return repo.AppendStatusChange(ctx, StatusChange{
			OrderID:   order.ID,
			ToStatus:  workflow.StatusDraft,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "order.create", order.ID, map[string]any{"order_number": number})
	return s.repo.Get(ctx, req.TenantID, order.ID)
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Order, error) {
	order, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.History = history
	return order, nil
}

func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]Order, shared.Pagination, error) {
	results, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return results, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// Progress reports where the order sits in the workflow together with the
// confirmation rules for every stage it could move to next.
type ProgressReport struct {
	Progress   workflow.Progress  `json:"progress"`
	StageInfo  workflow.StageInfo `json:"stage_info"`
	NextStages []NextStageOption  `json:"next_stages"`
}

type NextStageOption struct {
	Stage        workflow.Stage           `json:"stage"`
	Info         workflow.StageInfo       `json:"info"`
	Confirmation workflow.Confirmation    `json:"confirmation"`
	Rules        workflow.ValidationRules `json:"rules"`
}

func (s *Service) Progress(ctx context.Context, tenantID, id string) (*ProgressReport, error) {
	order, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	stage := order.Stage()
	info, _ := workflow.StageDetails(stage)

	report := ProgressReport{
		Progress:  workflow.CalculateProgress(order.Status),
		StageInfo: info,
	}
	if order.Status.IsTerminal() {
		return &report, nil
	}
	for _, next := range workflow.NextValidStages(stage) {
		nextInfo, _ := workflow.StageDetails(next)
		conf := workflow.RequiresConfirmation(stage, next)
		report.NextStages = append(report.NextStages, NextStageOption{
			Stage:        next,
			Info:         nextInfo,
			Confirmation: conf,
			Rules:        workflow.RulesFor(conf),
		})
	}
	return &report, nil
}

// TransitionStage moves the order to the target stage after enforcing the
// transition's confirmation rules.
func (s *Service) TransitionStage(ctx context.Context, tenantID, id string, req TransitionRequest) (*Order, error) {
	order, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.Status, httpx.ErrValidation)
	}

	from := order.Stage()
	to := req.TargetStage
	if _, ok := workflow.StageDetails(to); !ok {
		return nil, fmt.Errorf("unknown stage %q: %w", to, httpx.ErrValidation)
	}
	if !workflow.CanTransition(from, to) {
		return nil, fmt.Errorf("cannot move from %s to %s: %w", from, to, httpx.ErrValidation)
	}

	conf := workflow.RequiresConfirmation(from, to)
	rules := workflow.RulesFor(conf)
	note := strings.TrimSpace(req.Note)
	if rules.RequiresNotes && len(note) < rules.MinimumNoteLength {
		return nil, fmt.Errorf("transition to %s requires a note of at least %d characters: %w",
			to, rules.MinimumNoteLength, httpx.ErrValidation)
	}
	if rules.RequiresRiskAcknowledgment && !req.AcknowledgeRisk {
		return nil, fmt.Errorf("transition to %s requires risk acknowledgment: %w", to, httpx.ErrValidation)
	}

	newStatus := workflow.MapStageToStatus(to)
	actor := shared.ActorFromContext(ctx)
	change := StatusChange{
		OrderID:      order.ID,
		FromStatus:   &order.Status,
		ToStatus:     newStatus,
		ActorID:      actor.ID,
		ActorType:    actor.Type,
		PercentDelta: progressDelta(order.Status, newStatus),
		At:           time.Now(),
	}
	if note != "" {
		change.Note = &note
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateStatus(ctx, order.ID, newStatus, order.PaymentStatus, order.Version); err != nil {
			return err
		}
		return repo.AppendStatusChange(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(conf.Severity))
	s.recordAudit(ctx, actor, "order.transition", order.ID, map[string]any{
		"from": from, "to": to, "severity": conf.Severity,
	})
	s.invalidate(ctx, tenantID, order.ID)
	return s.repo.Get(ctx, tenantID, order.ID)
}

// RecordPayment applies a payment event. Paid amounts never exceed the order
// total, and payment progress advances the workflow through the payment
// stages.
func (s *Service) RecordPayment(ctx context.Context, tenantID, id string, req PaymentRequest) (*Order, error) {
	order, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	var (
		newPaid       int64
		paymentStatus PaymentStatus
		newStatus     = order.Status
		note          string
	)

	switch req.Kind {
	case PaymentKindRefund:
		if order.AmountPaid <= 0 {
			return nil, fmt.Errorf("nothing to refund: %w", httpx.ErrValidation)
		}
		if req.Amount > order.AmountPaid {
			return nil, fmt.Errorf("refund %d exceeds paid amount %d: %w", req.Amount, order.AmountPaid, httpx.ErrValidation)
		}
		newPaid = order.AmountPaid - req.Amount
		paymentStatus = PaymentRefunded
		newStatus = workflow.StatusRefunded
		note = "payment refunded"

	case PaymentKindDeposit, PaymentKindBalance:
		if order.Status.IsTerminal() {
			return nil, fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.Status, httpx.ErrValidation)
		}
		newPaid = order.AmountPaid + req.Amount
		if newPaid > order.TotalAmount {
			return nil, fmt.Errorf("payment of %d would exceed order total %d: %w",
				req.Amount, order.TotalAmount, httpx.ErrValidation)
		}
		if req.Kind == PaymentKindBalance && newPaid != order.TotalAmount {
			return nil, fmt.Errorf("balance payment must settle the outstanding %d: %w",
				order.Outstanding(), httpx.ErrValidation)
		}
		if newPaid == order.TotalAmount {
			paymentStatus = PaymentPaid
			note = "payment received in full"
		} else {
			paymentStatus = PaymentPartial
			note = "partial payment received"
		}
		// Payments move the workflow only while it sits in the payment
		// stages; later stages keep their status.
		stage := order.Stage()
		if stage == workflow.StageAwaitingPayment || stage == workflow.StagePartialPayment {
			if paymentStatus == PaymentPaid {
				newStatus = workflow.StatusFullPayment
			} else {
				newStatus = workflow.StatusPartialPayment
			}
		}

	default:
		return nil, fmt.Errorf("unknown payment kind %q: %w", req.Kind, httpx.ErrValidation)
	}

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.RecordPayment(ctx, order.ID, newPaid, paymentStatus, order.Version); err != nil {
			return err
		}
		if newStatus == order.Status {
			return nil
		}
		// RecordPayment bumped the version once already.
		if err := repo.UpdateStatus(ctx, order.ID, newStatus, paymentStatus, order.Version+1); err != nil {
			return err
		}
		return repo.AppendStatusChange(ctx, StatusChange{
			OrderID:      order.ID,
			FromStatus:   &order.Status,
			ToStatus:     newStatus,
			Note:         &note,
			ActorID:      actor.ID,
			ActorType:    actor.Type,
			PercentDelta: progressDelta(order.Status, newStatus),
			At:           time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "order.payment", order.ID, map[string]any{
		"kind": req.Kind, "amount": req.Amount,
	})
	s.invalidate(ctx, tenantID, order.ID)
	return s.repo.Get(ctx, tenantID, order.ID)
}

// Cancel is destructive and always demands an explicit risk acknowledgment.
func (s *Service) Cancel(ctx context.Context, tenantID, id string, req CancelRequest) (*Order, error) {
	order, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("order %s is already %s: %w", order.OrderNumber, order.Status, httpx.ErrValidation)
	}
	if !req.AcknowledgeRisk {
		return nil, fmt.Errorf("cancellation requires risk acknowledgment: %w", httpx.ErrValidation)
	}

	actor := shared.ActorFromContext(ctx)
	reason := strings.TrimSpace(req.Reason)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateStatus(ctx, order.ID, workflow.StatusCancelled, order.PaymentStatus, order.Version); err != nil {
			return err
		}
		return repo.AppendStatusChange(ctx, StatusChange{
			OrderID:      order.ID,
			FromStatus:   &order.Status,
			ToStatus:     workflow.StatusCancelled,
			Note:         &reason,
			ActorID:      actor.ID,
			ActorType:    actor.Type,
			PercentDelta: progressDelta(order.Status, workflow.StatusCancelled),
			At:           time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "order.cancel", order.ID, map[string]any{"reason": reason})
	s.invalidate(ctx, tenantID, order.ID)
	return s.repo.Get(ctx, tenantID, order.ID)
}

// Delete soft-deletes an order. Only drafts may be deleted.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	order, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if order.Stage() != workflow.StageDraft {
		return fmt.Errorf("only draft orders can be deleted: %w", httpx.ErrValidation)
	}
	if err := s.repo.SoftDelete(ctx, tenantID, id); err != nil {
		return err
	}
	actor := shared.ActorFromContext(ctx)
	s.recordAudit(ctx, actor, "order.delete", id, nil)
	s.invalidate(ctx, tenantID, id)
	return nil
}

// AdvanceOnQuoteAccepted is called by the negotiation flow when a vendor
// quote is accepted. The customer-facing amount is the offer with the
// standard markup, and the order moves to the customer quote stage.
func (s *Service) AdvanceOnQuoteAccepted(ctx context.Context, tenantID, orderID string, offerAmount int64) error {
	order, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	quotation := int64(math.Round(float64(offerAmount) * quoteMarkup))

	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.SetQuotationAmount(ctx, order.ID, quotation); err != nil {
			return err
		}
		if !workflow.CanTransition(order.Stage(), workflow.StageCustomerQuote) {
			// Orders already past negotiation keep their status; only the
			// customer-facing amount is refreshed.
			s.logger.Warn("quote accepted for order past negotiation",
				slog.String("order_id", order.ID), slog.String("status", string(order.Status)))
			s.invalidate(ctx, tenantID, order.ID)
			return nil
		}
		note := "vendor quote accepted"
		if err := repo.UpdateStatus(ctx, order.ID, workflow.StatusCustomerQuote, order.PaymentStatus, order.Version+1); err != nil {
			return err
		}
		if err := repo.AppendStatusChange(ctx, StatusChange{
			OrderID:      order.ID,
			FromStatus:   &order.Status,
			ToStatus:     workflow.StatusCustomerQuote,
			Note:         &note,
			ActorID:      shared.SystemActor.ID,
			ActorType:    shared.ActorSystem,
			PercentDelta: progressDelta(order.Status, workflow.StatusCustomerQuote),
			At:           time.Now(),
		}); err != nil {
			return err
		}
		s.invalidate(ctx, tenantID, order.ID)
		return nil
	})
}

// RevertToSourcing sends the order back to vendor sourcing after all of its
// active quotes were rejected.
func (s *Service) RevertToSourcing(ctx context.Context, tenantID, orderID, note string) error {
	order, err := s.repo.Get(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	stage := order.Stage()
	if stage != workflow.StageVendorNegotiation && stage != workflow.StageCustomerQuote {
		return nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateStatus(ctx, order.ID, workflow.StatusVendorSourcing, order.PaymentStatus, order.Version); err != nil {
			return err
		}
		return repo.AppendStatusChange(ctx, StatusChange{
			OrderID:      order.ID,
			FromStatus:   &order.Status,
			ToStatus:     workflow.StatusVendorSourcing,
			Note:         &note,
			ActorID:      shared.SystemActor.ID,
			ActorType:    shared.ActorSystem,
			PercentDelta: progressDelta(order.Status, workflow.StatusVendorSourcing),
			At:           time.Now(),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, tenantID, order.ID)
	return nil
}

func progressDelta(from, to workflow.Status) int {
	return workflow.CalculateProgress(to).Percentage - workflow.CalculateProgress(from).Percentage
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:   actor.ID,
		ActorType: actor.Type,
		Action:    action,
		Entity:    "order",
		EntityID:  entityID,
		Meta:      meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, tenantID, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tenantID, orderID); err != nil {
		s.logger.Warn("cache invalidation failed", slog.String("order_id", orderID), slog.Any("error", err))
	}
}
