// Package optimistic coordinates latency-hiding cache updates: a mutation is
// projected into the order cache immediately, then either confirmed with the
// authoritative server state or rolled back to the prior snapshot. The server
// remains the source of truth throughout; this layer only decides what the
// cache shows in the meantime.
package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentra-orders/sentra/internal/observability"
	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/platform/httpx"
)

// OperationKind labels what an in-flight update claims to be doing.
type OperationKind string

const (
	OpStageTransition OperationKind = "stage_transition"
	OpPayment         OperationKind = "payment"
	OpQuoteAction     OperationKind = "quote_action"
	OpCancel          OperationKind = "cancel"
)

// ViewInvalidator drops cached views derived from an order, so they refetch
// after the order itself changed.
type ViewInvalidator interface {
	InvalidateOrder(ctx context.Context, tenantID, orderID string) error
}

type update struct {
	id        string
	tenantID  string
	orderID   string
	kind      OperationKind
	snapshot  orders.CachedOrder
	appliedAt time.Time
}

// Manager tracks in-flight optimistic updates. One Manager is shared by all
// callers; its lifecycle belongs to the application root.
type Manager struct {
	cache   *orders.Cache
	views   ViewInvalidator
	metrics *observability.Metrics
	logger  *slog.Logger

	// mu serializes the bookkeeping AND the cache writes it sanctions.
	// Deciding that a confirmation is current and then writing the cache
	// outside the lock would let a newer Apply's tentative entry land in
	// between and be clobbered.
	mu       sync.Mutex
	inflight map[string]*update // by update id
	latest   map[string]string  // order id -> most recent update id
}

func NewManager(cache *orders.Cache, views ViewInvalidator, metrics *observability.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cache:    cache,
		views:    views,
		metrics:  metrics,
		logger:   logger,
		inflight: make(map[string]*update),
		latest:   make(map[string]string),
	}
}

// Rollback restores the cache state captured when its update was applied.
type Rollback func(ctx context.Context) error

// Apply projects a mutation into the cache ahead of server confirmation.
// The order must already be cached; a missing entry is a precondition
// failure, never papered over with a synthesized placeholder. Returns the
// update id and the rollback bound to the captured snapshot.
func (m *Manager) Apply(ctx context.Context, tenantID, orderID string, kind OperationKind, project func(orders.Order) orders.Order) (string, Rollback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, err := m.cache.Get(ctx, tenantID, orderID)
	if err != nil {
		return "", nil, err
	}
	if cached == nil {
		return "", nil, fmt.Errorf("order %s not cached, cannot apply optimistic update: %w", orderID, httpx.ErrNotFound)
	}

	// Superseding an in-flight update: the cache holds that update's
	// tentative entry, so re-snapshotting it would bake the marker into
	// this update's rollback state. Carry the original snapshot forward
	// instead, so rolling back every update restores the last settled
	// entry.
	snapshot := *cached
	if latestID, ok := m.latest[orderID]; ok {
		if prev, tracked := m.inflight[latestID]; tracked {
			snapshot = prev.snapshot
		}
	}
	if snapshot.Optimistic {
		return "", nil, fmt.Errorf("order %s cache entry is tentative with no tracked update: %w", orderID, httpx.ErrConflict)
	}

	upd := &update{
		id:        uuid.NewString(),
		tenantID:  tenantID,
		orderID:   orderID,
		kind:      kind,
		snapshot:  snapshot,
		appliedAt: time.Now(),
	}

	projected := project(cached.Order)
	if err := m.cache.SetOptimistic(ctx, projected, upd.id); err != nil {
		return "", nil, err
	}

	m.inflight[upd.id] = upd
	// A newer update for the same order supersedes any earlier one.
	m.latest[orderID] = upd.id

	rollback := func(ctx context.Context) error {
		return m.Rollback(ctx, upd.id)
	}
	return upd.id, rollback, nil
}

// Confirm replaces the tentative entry with the authoritative server order
// and invalidates derived views. A second confirmation for the same update,
// or a confirmation for an update that was superseded, is discarded with a
// warning.
func (m *Manager) Confirm(ctx context.Context, updateID string, server orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	upd, ok := m.inflight[updateID]
	if !ok {
		m.logger.Warn("confirmation for unknown or already confirmed update",
			slog.String("update_id", updateID))
		return nil
	}
	if m.latest[upd.orderID] != updateID {
		// A newer optimistic update owns the cache entry now; applying this
		// confirmation would clobber it.
		delete(m.inflight, updateID)
		m.logger.Warn("discarding stale confirmation",
			slog.String("update_id", updateID), slog.String("order_id", upd.orderID))
		return nil
	}

	// Cache write before bookkeeping: a failed write keeps the update
	// in flight so the caller can retry.
	if err := m.cache.Set(ctx, server); err != nil {
		return err
	}
	delete(m.inflight, updateID)
	delete(m.latest, upd.orderID)

	m.metrics.ObserveOptimisticConfirm()
	m.invalidateViews(ctx, upd.tenantID, upd.orderID)
	return nil
}

// Rollback reinstates the snapshot captured at apply time. When the update
// was superseded the snapshot duty moved to the newer update, so the record
// is simply dropped and the newer update keeps the entry. The cache is never
// left tentative once every update has been rolled back.
func (m *Manager) Rollback(ctx context.Context, updateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	upd, ok := m.inflight[updateID]
	if !ok {
		m.logger.Warn("rollback for unknown or settled update", slog.String("update_id", updateID))
		return nil
	}
	delete(m.inflight, updateID)
	if m.latest[upd.orderID] != updateID {
		return nil
	}
	delete(m.latest, upd.orderID)

	m.metrics.ObserveOptimisticRollback()
	if err := m.cache.Restore(ctx, upd.snapshot); err != nil {
		// Snapshot restore failed; drop the entry so readers refetch rather
		// than see the tentative state.
		m.logger.Warn("snapshot restore failed, invalidating cache entry",
			slog.String("order_id", upd.orderID), slog.Any("error", err))
		return m.cache.Delete(ctx, upd.tenantID, upd.orderID)
	}
	m.invalidateViews(ctx, upd.tenantID, upd.orderID)
	return nil
}

// InFlight reports how many updates are awaiting confirmation.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

func (m *Manager) invalidateViews(ctx context.Context, tenantID, orderID string) {
	if m.views == nil {
		return
	}
	if err := m.views.InvalidateOrder(ctx, tenantID, orderID); err != nil {
		m.logger.Warn("view invalidation failed",
			slog.String("order_id", orderID), slog.Any("error", err))
	}
}
