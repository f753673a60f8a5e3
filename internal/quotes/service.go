package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/shared"
)

const (
	// maxRounds caps counter-offers per quote. The fifth round is the last.
	maxRounds = 5
	// defaultExpiryDays applies when a quote is sent without an explicit
	// deadline.
	defaultExpiryDays = 30
)

// OrderPort is the slice of the order workflow the negotiation needs:
// advancing the order once a vendor is locked in, and sending it back to
// sourcing when every vendor fell through.
type OrderPort interface {
	AdvanceOnQuoteAccepted(ctx context.Context, tenantID, orderID string, offerAmount int64) error
	RevertToSourcing(ctx context.Context, tenantID, orderID, note string) error
}

type Service struct {
	repo   Repository
	orders OrderPort
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, orders OrderPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, orders: orders, audit: audit, logger: logger, now: time.Now}
}

// Start opens a negotiation with a vendor as a draft quote at round 1.
func (s *Service) Start(ctx context.Context, req StartQuoteRequest) (*Quote, error) {
	active, err := s.repo.ActiveByOrder(ctx, req.TenantID, req.OrderID)
	if err != nil {
		return nil, err
	}
	for _, q := range active {
		if q.VendorID == req.VendorID {
			return nil, fmt.Errorf("vendor %s already has active quote %s: %w",
				req.VendorID, q.QuoteNumber, httpx.ErrConflict)
		}
	}

	now := s.now()
	number, err := s.repo.GenerateNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	quote := Quote{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		OrderID:      req.OrderID,
		VendorID:     req.VendorID,
		QuoteNumber:  number,
		Round:        1,
		InitialOffer: req.Offer,
		LatestOffer:  req.Offer,
		Currency:     req.Currency,
		Status:       QuoteStatusDraft,
		Version:      1,
	}
	if req.ExpiresInDays != nil {
		expires := now.AddDate(0, 0, *req.ExpiresInDays)
		quote.ExpiresAt = &expires
	}

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Create(ctx, quote); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		offer := req.Offer
		return repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:   quote.ID,
			Status:    QuoteStatusDraft,
			Note:      req.Note,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			NewOffer:  &offer,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "quote.start", quote.ID, map[string]any{"order_id": req.OrderID, "vendor_id": req.VendorID})
	return s.Get(ctx, req.TenantID, quote.ID)
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Quote, error) {
	quote, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.Events(ctx, quote.ID)
	if err != nil {
		return nil, err
	}
	quote.History = events
	return quote, nil
}

func (s *Service) ListByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error) {
	return s.repo.ListByOrder(ctx, tenantID, orderID)
}

// Send dispatches a draft quote to the vendor and starts the expiry clock.
func (s *Service) Send(ctx context.Context, tenantID, id string) (*Quote, error) {
	quote, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != QuoteStatusDraft {
		return nil, fmt.Errorf("quote %s is %s, only drafts can be sent: %w",
			quote.QuoteNumber, quote.Status, httpx.ErrValidation)
	}

	now := s.now()
	expiresAt := quote.ExpiresAt
	if expiresAt == nil {
		e := now.AddDate(0, 0, defaultExpiryDays)
		expiresAt = &e
	}

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateExpiry(ctx, quote.ID, &now, expiresAt, QuoteStatusSent, quote.Version); err != nil {
			return err
		}
		return repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:   quote.ID,
			Status:    QuoteStatusSent,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "quote.send", quote.ID, nil)
	return s.Get(ctx, tenantID, id)
}

// MarkPendingResponse records that the vendor acknowledged the quote and is
// preparing an answer.
func (s *Service) MarkPendingResponse(ctx context.Context, tenantID, id string) (*Quote, error) {
	quote, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != QuoteStatusSent {
		return nil, fmt.Errorf("quote %s is %s, expected sent: %w", quote.QuoteNumber, quote.Status, httpx.ErrValidation)
	}

	actor := shared.ActorFromContext(ctx)
	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateStatus(ctx, quote.ID, QuoteStatusPendingResponse, nil, nil, quote.Version); err != nil {
			return err
		}
		return repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:   quote.ID,
			Status:    QuoteStatusPendingResponse,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// respondable statuses can be accepted, rejected or countered.
func respondable(status QuoteStatus) bool {
	switch status {
	case QuoteStatusSent, QuoteStatusPendingResponse, QuoteStatusCountered:
		return true
	}
	return false
}

// guardExpiry is the commit-time deadline re-check shared by user actions.
// It never mutates: flipping the row to expired is left to the sweep, which
// will no longer race with this action once it has failed.
func guardExpiry(quote *Quote, now time.Time) error {
	if !quote.ExpiredBy(now) {
		return nil
	}
	return fmt.Errorf("quote %s expired at %s: %w",
		quote.QuoteNumber, quote.ExpiresAt.Format(time.RFC3339), httpx.ErrExpired)
}

// Accept locks in the vendor's latest offer. Every other active quote on the
// same order is auto-rejected in the same transaction, so afterwards the
// order has exactly one accepted quote and no active ones. The order advances
// to the customer quote stage.
func (s *Service) Accept(ctx context.Context, tenantID, id string, req AcceptQuoteRequest) (*Quote, error) {
	actor := shared.ActorFromContext(ctx)
	now := s.now()

	var accepted *Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !respondable(quote.Status) {
			return fmt.Errorf("quote %s is %s and cannot be accepted: %w",
				quote.QuoteNumber, quote.Status, httpx.ErrValidation)
		}
		if err := guardExpiry(quote, now); err != nil {
			return err
		}

		if err := repo.UpdateStatus(ctx, quote.ID, QuoteStatusAccepted, &now, &now, quote.Version); err != nil {
			return err
		}
		if err := repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:   quote.ID,
			Status:    QuoteStatusAccepted,
			Note:      req.Note,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			At:        now,
		}); err != nil {
			return err
		}

		siblings, err := repo.ActiveByOrder(ctx, tenantID, quote.OrderID)
		if err != nil {
			return err
		}
		autoNote := fmt.Sprintf("auto-rejected: quote %s was accepted", quote.QuoteNumber)
		for _, sib := range siblings {
			if sib.ID == quote.ID {
				continue
			}
			if err := repo.UpdateStatus(ctx, sib.ID, QuoteStatusRejected, nil, &now, sib.Version); err != nil {
				return err
			}
			if err := repo.AppendEvent(ctx, QuoteEvent{
				QuoteID:   sib.ID,
				Status:    QuoteStatusRejected,
				Note:      &autoNote,
				ActorID:   shared.SystemActor.ID,
				ActorType: shared.ActorSystem,
				At:        now,
			}); err != nil {
				return err
			}
		}

		accepted = quote
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.orders != nil {
		if err := s.orders.AdvanceOnQuoteAccepted(ctx, tenantID, accepted.OrderID, accepted.LatestOffer); err != nil {
			// The acceptance itself is committed; the order advance is
			// retried by the operator, not unwound.
			s.logger.Error("order advance after quote accept failed",
				slog.String("quote_id", accepted.ID), slog.Any("error", err))
		}
	}

	s.recordAudit(ctx, actor, "quote.accept", accepted.ID, map[string]any{"order_id": accepted.OrderID})
	return s.Get(ctx, tenantID, id)
}

// Reject closes the quote with a reason. When this was the order's last
// active quote the order falls back to vendor sourcing.
func (s *Service) Reject(ctx context.Context, tenantID, id string, req RejectQuoteRequest) (*Quote, error) {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < 10 {
		return nil, fmt.Errorf("rejection reason must be at least 10 characters: %w", httpx.ErrValidation)
	}

	actor := shared.ActorFromContext(ctx)
	now := s.now()

	var (
		rejected   *Quote
		noneActive bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !quote.Status.IsActive() {
			return fmt.Errorf("quote %s is %s and cannot be rejected: %w",
				quote.QuoteNumber, quote.Status, httpx.ErrValidation)
		}

		if err := repo.UpdateStatus(ctx, quote.ID, QuoteStatusRejected, &now, &now, quote.Version); err != nil {
			return err
		}
		if err := repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:   quote.ID,
			Status:    QuoteStatusRejected,
			Note:      &reason,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			At:        now,
		}); err != nil {
			return err
		}

		remaining, err := repo.ActiveByOrder(ctx, tenantID, quote.OrderID)
		if err != nil {
			return err
		}
		noneActive = len(remaining) == 0
		rejected = quote
		return nil
	})
	if err != nil {
		return nil, err
	}

	if noneActive && s.orders != nil {
		if err := s.orders.RevertToSourcing(ctx, tenantID, rejected.OrderID, "all vendor quotes rejected"); err != nil {
			s.logger.Error("order revert after last rejection failed",
				slog.String("order_id", rejected.OrderID), slog.Any("error", err))
		}
	}

	s.recordAudit(ctx, actor, "quote.reject", rejected.ID, map[string]any{"reason": reason})
	return s.Get(ctx, tenantID, id)
}

// Counter records a new offer and advances the round. All validation happens
// before any mutation; hitting the round cap leaves the quote untouched.
func (s *Service) Counter(ctx context.Context, tenantID, id string, req CounterQuoteRequest) (*Quote, error) {
	if req.Offer <= 0 {
		return nil, fmt.Errorf("counter offer must be positive: %w", httpx.ErrValidation)
	}

	actor := shared.ActorFromContext(ctx)
	now := s.now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		quote, err := repo.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !respondable(quote.Status) {
			return fmt.Errorf("quote %s is %s and cannot be countered: %w",
				quote.QuoteNumber, quote.Status, httpx.ErrValidation)
		}
		if quote.Round >= maxRounds {
			return fmt.Errorf("quote %s reached the round cap of %d: %w",
				quote.QuoteNumber, maxRounds, httpx.ErrValidation)
		}
		if err := guardExpiry(quote, now); err != nil {
			return err
		}

		previous := quote.LatestOffer
		delta := percentDelta(previous, req.Offer)
		if err := repo.UpdateOffer(ctx, quote.ID, quote.Round+1, req.Offer, quote.Version); err != nil {
			return err
		}
		offer := req.Offer
		return repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:       quote.ID,
			Status:        QuoteStatusCountered,
			Note:          req.Note,
			ActorID:       actor.ID,
			ActorType:     actor.Type,
			PreviousOffer: &previous,
			NewOffer:      &offer,
			PercentDelta:  &delta,
			At:            now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "quote.counter", id, map[string]any{"offer": req.Offer})
	return s.Get(ctx, tenantID, id)
}

// ExtendExpiration pushes the deadline out for an active quote. An already
// lapsed deadline extends from now, not from the past date.
func (s *Service) ExtendExpiration(ctx context.Context, tenantID, id string, req ExtendExpirationRequest) (*Quote, error) {
	quote, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !quote.Status.IsActive() {
		return nil, fmt.Errorf("quote %s is %s, only active quotes can be extended: %w",
			quote.QuoteNumber, quote.Status, httpx.ErrValidation)
	}

	now := s.now()
	base := now
	if quote.ExpiresAt != nil && quote.ExpiresAt.After(now) {
		base = *quote.ExpiresAt
	}
	newExpiry := base.AddDate(0, 0, req.Days)

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateExpiry(ctx, quote.ID, nil, &newExpiry, quote.Status, quote.Version); err != nil {
			return err
		}
		note := fmt.Sprintf("expiration extended by %d days", req.Days)
		return repo.AppendEvent(ctx, QuoteEvent{
			QuoteID:   quote.ID,
			Status:    quote.Status,
			Note:      &note,
			ActorID:   actor.ID,
			ActorType: actor.Type,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "quote.extend", quote.ID, map[string]any{"days": req.Days})
	return s.Get(ctx, tenantID, id)
}

// ExpireDue reclassifies overdue quotes as expired. The sweep is idempotent:
// a quote already expired is no longer active and is not picked up again.
// Returns how many quotes were expired in this pass.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.repo.FindExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, quote := range due {
		quote := quote
		err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			// Re-read under the transaction: a user action may have closed
			// the quote between the scan and this commit.
			current, err := repo.Get(ctx, quote.TenantID, quote.ID)
			if err != nil {
				return err
			}
			if !current.Status.IsActive() || !current.ExpiredBy(now) {
				return nil
			}
			if err := repo.UpdateStatus(ctx, current.ID, QuoteStatusExpired, nil, &now, current.Version); err != nil {
				return err
			}
			note := "quote expired"
			return repo.AppendEvent(ctx, QuoteEvent{
				QuoteID:   current.ID,
				Status:    QuoteStatusExpired,
				Note:      &note,
				ActorID:   shared.SystemActor.ID,
				ActorType: shared.ActorSystem,
				At:        now,
			})
		})
		if err != nil {
			s.logger.Error("expire sweep failed for quote",
				slog.String("quote_id", quote.ID), slog.Any("error", err))
			continue
		}
		expired++
	}
	return expired, nil
}

// Stats summarizes negotiation activity for one order.
func (s *Service) Stats(ctx context.Context, tenantID, orderID string) (*QuoteStats, error) {
	all, err := s.repo.ListByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	stats := QuoteStats{ByStatus: make(map[QuoteStatus]int)}
	var roundSum int
	for _, q := range all {
		stats.Total++
		stats.ByStatus[q.Status]++
		if q.Status.IsActive() {
			stats.ActiveCount++
		}
		roundSum += q.Round
		offer := q.LatestOffer
		if stats.LowestOffer == nil || offer < *stats.LowestOffer {
			stats.LowestOffer = &offer
		}
		if stats.HighestOffer == nil || offer > *stats.HighestOffer {
			stats.HighestOffer = &offer
		}
	}
	if stats.Total > 0 {
		stats.AverageRounds = float64(roundSum) / float64(stats.Total)
	}
	return &stats, nil
}

func percentDelta(previous, next int64) float64 {
	if previous == 0 {
		return 0
	}
	return (float64(next) - float64(previous)) / float64(previous) * 100
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:   actor.ID,
		ActorType: actor.Type,
		Action:    action,
		Entity:    "quote",
		EntityID:  entityID,
		Meta:      meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
