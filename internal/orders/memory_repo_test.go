package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/workflow"
)

type memoryOrderRepo struct {
	orders  map[string]Order
	items   map[string][]OrderItem
	history map[string][]StatusChange
	nextSeq int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:  make(map[string]Order),
		items:   make(map[string][]OrderItem),
		history: make(map[string][]StatusChange),
	}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryOrderRepo) Get(ctx context.Context, tenantID, id string) (*Order, error) {
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID || o.DeletedAt != nil {
		return nil, httpx.ErrNotFound
	}
	o.Items = append([]OrderItem(nil), r.items[id]...)
	return &o, nil
}

func (r *memoryOrderRepo) GetByNumber(ctx context.Context, tenantID, number string) (*Order, error) {
	for id, o := range r.orders {
		if o.TenantID == tenantID && o.OrderNumber == number && o.DeletedAt == nil {
			return r.Get(ctx, tenantID, id)
		}
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryOrderRepo) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	var out []Order
	for _, o := range r.orders {
		if o.TenantID != req.TenantID || o.DeletedAt != nil {
			continue
		}
		if req.CustomerID != nil && o.CustomerID != *req.CustomerID {
			continue
		}
		if req.Status != nil && o.Status != *req.Status {
			continue
		}
		if req.Stage != nil && workflow.MapStatusToStage(o.Status) != *req.Stage {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, len(out), nil
}

func (r *memoryOrderRepo) Create(ctx context.Context, order Order) error {
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	r.orders[order.ID] = order
	return nil
}

func (r *memoryOrderRepo) InsertItem(ctx context.Context, item OrderItem) error {
	r.items[item.OrderID] = append(r.items[item.OrderID], item)
	return nil
}

func (r *memoryOrderRepo) UpdateStatus(ctx context.Context, id string, status workflow.Status, paymentStatus PaymentStatus, expectedVersion int64) error {
	o, ok := r.orders[id]
	if !ok || o.DeletedAt != nil {
		return httpx.ErrNotFound
	}
	if o.Version != expectedVersion {
		return fmt.Errorf("version mismatch: %w", httpx.ErrConflict)
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.Version++
	o.UpdatedAt = time.Now()
	r.orders[id] = o
	return nil
}

func (r *memoryOrderRepo) RecordPayment(ctx context.Context, id string, amountPaid int64, paymentStatus PaymentStatus, expectedVersion int64) error {
	o, ok := r.orders[id]
	if !ok || o.DeletedAt != nil {
		return httpx.ErrNotFound
	}
	if o.Version != expectedVersion {
		return fmt.Errorf("version mismatch: %w", httpx.ErrConflict)
	}
	o.AmountPaid = amountPaid
	o.PaymentStatus = paymentStatus
	o.Version++
	r.orders[id] = o
	return nil
}

func (r *memoryOrderRepo) SetQuotationAmount(ctx context.Context, id string, amount int64) error {
	o, ok := r.orders[id]
	if !ok || o.DeletedAt != nil {
		return httpx.ErrNotFound
	}
	o.QuotationAmount = &amount
	o.Version++
	r.orders[id] = o
	return nil
}

func (r *memoryOrderRepo) AppendStatusChange(ctx context.Context, change StatusChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	r.history[change.OrderID] = append(r.history[change.OrderID], change)
	return nil
}

func (r *memoryOrderRepo) History(ctx context.Context, orderID string) ([]StatusChange, error) {
	return append([]StatusChange(nil), r.history[orderID]...), nil
}

func (r *memoryOrderRepo) SoftDelete(ctx context.Context, tenantID, id string) error {
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID || o.DeletedAt != nil {
		return httpx.ErrNotFound
	}
	now := time.Now()
	o.DeletedAt = &now
	r.orders[id] = o
	return nil
}

func (r *memoryOrderRepo) GenerateNumber(ctx context.Context, at time.Time) (string, error) {
	r.nextSeq++
	return fmt.Sprintf("ORD-%s-%05d", at.Format("200601"), r.nextSeq), nil
}
