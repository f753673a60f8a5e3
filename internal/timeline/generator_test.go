package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/quotes"
	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/workflow"
)

func strPtr(s string) *string { return &s }

func historyOrder(statuses []workflow.Status, start time.Time) *orders.Order {
	order := &orders.Order{
		ID:        "o1",
		TenantID:  "t1",
		CreatedAt: start,
	}
	for i, status := range statuses {
		status := status
		change := orders.StatusChange{
			ID:        string(rune('a' + i)),
			OrderID:   order.ID,
			ToStatus:  status,
			ActorID:   "admin-1",
			ActorType: shared.ActorAdmin,
			At:        start.Add(time.Duration(i) * 24 * time.Hour),
		}
		if i > 0 {
			change.FromStatus = &statuses[i-1]
		}
		order.History = append(order.History, change)
	}
	order.Status = statuses[len(statuses)-1]
	return order
}

func TestGenerateOrdersEventsChronologically(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	order := historyOrder([]workflow.Status{
		workflow.StatusDraft, workflow.StatusPending, workflow.StatusVendorSourcing,
	}, start)

	events := Generate(order, nil)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		require.False(t, events[i].At.Before(events[i-1].At))
	}
	require.Equal(t, workflow.StageVendorSourcing, events[2].Stage)
}

func TestGenerateSynthesizesMissingStages(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	// history jumps straight from draft to in_production: pending through
	// full_payment were never recorded
	order := historyOrder([]workflow.Status{
		workflow.StatusDraft, workflow.StatusInProduction,
	}, start)

	events := Generate(order, nil)

	var synthetic []Event
	for _, ev := range events {
		if ev.Synthetic {
			synthetic = append(synthetic, ev)
			require.Equal(t, shared.ActorSystem, ev.ActorType)
			require.Equal(t, CategorySystem, ev.Category)
		}
	}
	// stages 1..7 (pending..full_payment) are missing
	require.Len(t, synthetic, 7)

	// regenerating produces the same ids, no duplication drift
	again := Generate(order, nil)
	require.Equal(t, len(events), len(again))
}

func TestGenerateMergesQuoteEvents(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	order := historyOrder([]workflow.Status{workflow.StatusDraft}, start)

	prev := int64(100000)
	next := int64(90000)
	quoteList := []quotes.Quote{{
		ID:          "q1",
		OrderID:     order.ID,
		QuoteNumber: "QT-202608-00001",
		History: []quotes.QuoteEvent{
			{
				ID: "qe1", QuoteID: "q1", Status: quotes.QuoteStatusSent,
				ActorID: "admin-1", ActorType: shared.ActorAdmin,
				At: start.Add(time.Hour),
			},
			{
				ID: "qe2", QuoteID: "q1", Status: quotes.QuoteStatusCountered,
				ActorID: "vendor-1", ActorType: shared.ActorVendor,
				PreviousOffer: &prev, NewOffer: &next,
				At: start.Add(2 * time.Hour),
			},
		},
	}}

	events := Generate(order, quoteList)
	require.Len(t, events, 3)
	require.Equal(t, CategoryQuote, events[1].Category)
	require.Contains(t, events[1].Title, "QT-202608-00001")
	require.Contains(t, events[2].Detail, "100000")
	require.Contains(t, events[2].Detail, "90000")
}

func TestGenerateCancelledOrderHasNoSyntheticFill(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	order := historyOrder([]workflow.Status{
		workflow.StatusDraft, workflow.StatusCancelled,
	}, start)

	events := Generate(order, nil)
	require.Len(t, events, 2)
	require.Equal(t, "Order cancelled", events[1].Title)
	for _, ev := range events {
		require.False(t, ev.Synthetic)
	}
}

func TestComputeStats(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	order := historyOrder([]workflow.Status{
		workflow.StatusDraft, workflow.StatusPending, workflow.StatusVendorSourcing,
	}, start)
	order.History[2].Note = strPtr("two vendors shortlisted")

	events := Generate(order, nil)
	stats := ComputeStats(events)

	require.Equal(t, 3, stats.Total)
	require.Zero(t, stats.Synthetic)
	require.Equal(t, 3, stats.ByCategory[CategoryStatus])
	require.Equal(t, 3, stats.ByActor[shared.ActorAdmin])

	// one day in draft, one day in pending
	require.InDelta(t, 24.0, stats.StageDwellHours[workflow.StageDraft], 0.001)
	require.InDelta(t, 24.0, stats.StageDwellHours[workflow.StagePending], 0.001)
	require.InDelta(t, 24.0, stats.AverageDwellHours, 0.001)

	require.NotNil(t, stats.FirstEventAt)
	require.NotNil(t, stats.LastEventAt)
	require.Equal(t, start, *stats.FirstEventAt)
}
