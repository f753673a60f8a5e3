package quotes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
)

type memoryQuoteRepo struct {
	quotes  map[string]Quote
	events  map[string][]QuoteEvent
	nextSeq int64
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{
		quotes: make(map[string]Quote),
		events: make(map[string][]QuoteEvent),
	}
}

func (r *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryQuoteRepo) Get(ctx context.Context, tenantID, id string) (*Quote, error) {
	q, ok := r.quotes[id]
	if !ok || q.TenantID != tenantID {
		return nil, httpx.ErrNotFound
	}
	return &q, nil
}

func (r *memoryQuoteRepo) sorted(filter func(Quote) bool) []Quote {
	var out []Quote
	for _, q := range r.quotes {
		if filter(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteNumber < out[j].QuoteNumber })
	return out
}

func (r *memoryQuoteRepo) ListByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error) {
	return r.sorted(func(q Quote) bool {
		return q.TenantID == tenantID && q.OrderID == orderID
	}), nil
}

func (r *memoryQuoteRepo) ActiveByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error) {
	return r.sorted(func(q Quote) bool {
		return q.TenantID == tenantID && q.OrderID == orderID && q.Status.IsActive()
	}), nil
}

func (r *memoryQuoteRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]Quote, error) {
	out := r.sorted(func(q Quote) bool {
		return q.Status.IsActive() && q.ExpiredBy(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryQuoteRepo) Create(ctx context.Context, quote Quote) error {
	quote.CreatedAt = time.Now()
	quote.UpdatedAt = quote.CreatedAt
	r.quotes[quote.ID] = quote
	return nil
}

func (r *memoryQuoteRepo) locked(id string, expectedVersion int64) (Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return Quote{}, httpx.ErrNotFound
	}
	if q.Version != expectedVersion {
		return Quote{}, fmt.Errorf("version mismatch: %w", httpx.ErrConflict)
	}
	return q, nil
}

func (r *memoryQuoteRepo) UpdateStatus(ctx context.Context, id string, status QuoteStatus, respondedAt, closedAt *time.Time, expectedVersion int64) error {
	q, err := r.locked(id, expectedVersion)
	if err != nil {
		return err
	}
	q.Status = status
	if respondedAt != nil {
		q.RespondedAt = respondedAt
	}
	if closedAt != nil {
		q.ClosedAt = closedAt
	}
	q.Version++
	r.quotes[id] = q
	return nil
}

func (r *memoryQuoteRepo) UpdateOffer(ctx context.Context, id string, round int, latestOffer int64, expectedVersion int64) error {
	q, err := r.locked(id, expectedVersion)
	if err != nil {
		return err
	}
	q.Round = round
	q.LatestOffer = latestOffer
	q.Status = QuoteStatusCountered
	now := time.Now()
	q.RespondedAt = &now
	q.Version++
	r.quotes[id] = q
	return nil
}

func (r *memoryQuoteRepo) UpdateExpiry(ctx context.Context, id string, sentAt, expiresAt *time.Time, status QuoteStatus, expectedVersion int64) error {
	q, err := r.locked(id, expectedVersion)
	if err != nil {
		return err
	}
	if sentAt != nil {
		q.SentAt = sentAt
	}
	q.ExpiresAt = expiresAt
	q.Status = status
	q.Version++
	r.quotes[id] = q
	return nil
}

func (r *memoryQuoteRepo) AppendEvent(ctx context.Context, event QuoteEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.events[event.QuoteID] = append(r.events[event.QuoteID], event)
	return nil
}

func (r *memoryQuoteRepo) Events(ctx context.Context, quoteID string) ([]QuoteEvent, error) {
	return append([]QuoteEvent(nil), r.events[quoteID]...), nil
}

func (r *memoryQuoteRepo) GenerateNumber(ctx context.Context, at time.Time) (string, error) {
	r.nextSeq++
	return fmt.Sprintf("QT-%s-%05d", at.Format("200601"), r.nextSeq), nil
}
