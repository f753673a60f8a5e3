package optimistic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/workflow"
)

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) InvalidateOrder(ctx context.Context, tenantID, orderID string) error {
	r.calls = append(r.calls, orderID)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *orders.Cache, *recordingInvalidator) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := orders.NewCache(client, time.Minute)
	views := &recordingInvalidator{}
	return NewManager(cache, views, nil, nil), cache, views
}

func seededOrder(t *testing.T, cache *orders.Cache) orders.Order {
	t.Helper()
	order := orders.Order{
		ID:          "o1",
		TenantID:    "t1",
		OrderNumber: "ORD-202608-00001",
		Status:      workflow.StatusAwaitingPayment,
		TotalAmount: 45000,
		Version:     3,
	}
	require.NoError(t, cache.Set(context.Background(), order))
	return order
}

func transitionTo(status workflow.Status) func(orders.Order) orders.Order {
	return func(o orders.Order) orders.Order {
		o.Status = status
		return o
	}
}

func TestApplyRequiresCachedOrder(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, _, err := m.Apply(context.Background(), "t1", "absent", OpStageTransition,
		transitionTo(workflow.StatusPending))
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Zero(t, m.InFlight())
}

func TestApplyThenConfirmLeavesServerState(t *testing.T) {
	m, cache, views := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	updateID, _, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusPartialPayment))
	require.NoError(t, err)

	// cache shows the tentative state, marked optimistic
	tentative, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.True(t, tentative.Optimistic)
	require.Equal(t, updateID, tentative.UpdateID)
	require.Equal(t, workflow.StatusPartialPayment, tentative.Order.Status)

	server := order
	server.Status = workflow.StatusPartialPayment
	server.Version = 4
	require.NoError(t, m.Confirm(ctx, updateID, server))

	confirmed, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.False(t, confirmed.Optimistic)
	require.Empty(t, confirmed.UpdateID)
	require.Equal(t, server, confirmed.Order)
	require.Zero(t, m.InFlight())
	require.Equal(t, []string{order.ID}, views.calls)
}

func TestConfirmIsIdempotent(t *testing.T) {
	m, cache, views := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	updateID, _, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusPartialPayment))
	require.NoError(t, err)

	server := order
	server.Status = workflow.StatusPartialPayment
	require.NoError(t, m.Confirm(ctx, updateID, server))
	require.NoError(t, m.Confirm(ctx, updateID, server))

	require.Len(t, views.calls, 1)
}

func TestRollbackRestoresSnapshotExactly(t *testing.T) {
	m, cache, _ := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	before, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)

	_, rollback, err := m.Apply(ctx, "t1", order.ID, OpCancel,
		transitionTo(workflow.StatusCancelled))
	require.NoError(t, err)
	require.NoError(t, rollback(ctx))

	after, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, m.InFlight())
}

func TestRollbackIsSafeTwice(t *testing.T) {
	m, cache, _ := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	_, rollback, err := m.Apply(ctx, "t1", order.ID, OpPayment,
		transitionTo(workflow.StatusPartialPayment))
	require.NoError(t, err)
	require.NoError(t, rollback(ctx))
	require.NoError(t, rollback(ctx))
}

func TestStaleConfirmationIsDiscarded(t *testing.T) {
	m, cache, _ := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	first, _, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusPartialPayment))
	require.NoError(t, err)

	second, _, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusFullPayment))
	require.NoError(t, err)

	// the confirmation for the superseded update must not clobber the newer
	// tentative entry
	staleServer := order
	staleServer.Status = workflow.StatusPartialPayment
	require.NoError(t, m.Confirm(ctx, first, staleServer))

	current, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.True(t, current.Optimistic)
	require.Equal(t, second, current.UpdateID)
	require.Equal(t, workflow.StatusFullPayment, current.Order.Status)

	// the newer update's confirmation still lands
	newServer := order
	newServer.Status = workflow.StatusFullPayment
	newServer.Version = 5
	require.NoError(t, m.Confirm(ctx, second, newServer))

	settled, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.False(t, settled.Optimistic)
	require.Equal(t, newServer, settled.Order)
	require.Zero(t, m.InFlight())
}

func TestRollbackOfSupersededUpdateKeepsNewerEntry(t *testing.T) {
	m, cache, _ := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	_, firstRollback, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusPartialPayment))
	require.NoError(t, err)

	second, _, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusFullPayment))
	require.NoError(t, err)

	require.NoError(t, firstRollback(ctx))

	current, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.True(t, current.Optimistic)
	require.Equal(t, second, current.UpdateID)
}

func TestRollingBackStackedUpdatesRestoresSettledState(t *testing.T) {
	m, cache, _ := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	before, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)

	_, firstRollback, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusPartialPayment))
	require.NoError(t, err)

	// the second update stacks on top of the first's tentative entry; its
	// rollback must still land on the settled state, not the first
	// update's tentative one
	_, secondRollback, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusFullPayment))
	require.NoError(t, err)

	require.NoError(t, firstRollback(ctx))
	require.NoError(t, secondRollback(ctx))

	final, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.False(t, final.Optimistic, "cache left tentative after all updates rolled back")
	require.Empty(t, final.UpdateID)
	require.Equal(t, before, final)
	require.Zero(t, m.InFlight())
}

func TestApplyRefusesUntrackedTentativeEntry(t *testing.T) {
	m, cache, _ := newTestManager(t)
	ctx := context.Background()

	order := orders.Order{ID: "o9", TenantID: "t1", Status: workflow.StatusDraft}
	require.NoError(t, cache.SetOptimistic(ctx, order, "orphaned-update"))

	_, _, err := m.Apply(ctx, "t1", order.ID, OpStageTransition,
		transitionTo(workflow.StatusPending))
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Zero(t, m.InFlight())
}

func TestConcurrentApplyConfirmSettles(t *testing.T) {
	m, cache, _ := newTestManager(t)
	order := seededOrder(t, cache)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				updateID, _, err := m.Apply(ctx, "t1", order.ID, OpPayment,
					transitionTo(workflow.StatusPartialPayment))
				if err != nil {
					continue
				}
				server := order
				server.Status = workflow.StatusPartialPayment
				_ = m.Confirm(ctx, updateID, server)
			}
		}()
	}
	wg.Wait()

	// once every update has been confirmed or discarded, the entry must be
	// settled; a delayed confirmation must never have clobbered a newer
	// tentative write
	require.Zero(t, m.InFlight())
	final, err := cache.Get(ctx, "t1", order.ID)
	require.NoError(t, err)
	require.False(t, final.Optimistic)
	require.Empty(t, final.UpdateID)
}

func TestUpdatesForDifferentOrdersDoNotInterfere(t *testing.T) {
	m, cache, _ := newTestManager(t)
	ctx := context.Background()

	a := orders.Order{ID: "oa", TenantID: "t1", Status: workflow.StatusDraft}
	b := orders.Order{ID: "ob", TenantID: "t1", Status: workflow.StatusShipping}
	require.NoError(t, cache.Set(ctx, a))
	require.NoError(t, cache.Set(ctx, b))

	updA, _, err := m.Apply(ctx, "t1", "oa", OpStageTransition, transitionTo(workflow.StatusPending))
	require.NoError(t, err)
	updB, _, err := m.Apply(ctx, "t1", "ob", OpStageTransition, transitionTo(workflow.StatusCompleted))
	require.NoError(t, err)
	require.Equal(t, 2, m.InFlight())

	serverA := a
	serverA.Status = workflow.StatusPending
	require.NoError(t, m.Confirm(ctx, updA, serverA))

	// order B's tentative entry is untouched
	cachedB, err := cache.Get(ctx, "t1", "ob")
	require.NoError(t, err)
	require.True(t, cachedB.Optimistic)
	require.Equal(t, updB, cachedB.UpdateID)
	require.Equal(t, 1, m.InFlight())
}
