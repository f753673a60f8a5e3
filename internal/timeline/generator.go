// Package timeline derives a human-readable event feed from an order's
// status history and its quote negotiations. Events are derived data: source
// records are never mutated, and gaps left by legacy rows are filled with
// synthesized entries that are clearly marked as such.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/quotes"
	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/workflow"
)

type Category string

const (
	CategoryStatus  Category = "status"
	CategoryPayment Category = "payment"
	CategoryQuote   Category = "quote"
	CategorySystem  Category = "system"
)

// Event is one timeline entry. Synthetic entries were inferred to fill a gap
// in the recorded history rather than observed directly.
type Event struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"order_id"`
	Category  Category         `json:"category"`
	Title     string           `json:"title"`
	Detail    string           `json:"detail,omitempty"`
	Stage     workflow.Stage   `json:"stage,omitempty"`
	Status    workflow.Status  `json:"status,omitempty"`
	ActorID   string           `json:"actor_id"`
	ActorType shared.ActorType `json:"actor_type"`
	At        time.Time        `json:"at"`
	Synthetic bool             `json:"synthetic,omitempty"`
}

// Generate builds the ordered feed for an order. Quote histories are merged
// in, and completed stages missing from the recorded history are synthesized
// so the feed never shows a hole in the middle of the pipeline.
func Generate(order *orders.Order, quoteList []quotes.Quote) []Event {
	var events []Event

	seen := make(map[workflow.Stage]bool)
	for _, change := range order.History {
		events = append(events, statusEvent(order, change))
		seen[workflow.MapStatusToStage(change.ToStatus)] = true
	}

	for _, q := range quoteList {
		for _, ev := range q.History {
			events = append(events, quoteEvent(order, q, ev))
		}
	}

	events = append(events, synthesizeMissing(order, seen)...)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].At.Equal(events[j].At) {
			// synthesized entries sort before the real event that anchors them
			return events[i].Synthetic && !events[j].Synthetic
		}
		return events[i].At.Before(events[j].At)
	})
	return events
}

func statusEvent(order *orders.Order, change orders.StatusChange) Event {
	stage := workflow.MapStatusToStage(change.ToStatus)
	category := CategoryStatus
	if change.ToStatus == workflow.StatusPartialPayment ||
		change.ToStatus == workflow.StatusFullPayment ||
		change.ToStatus == workflow.StatusRefunded {
		category = CategoryPayment
	}

	ev := Event{
		ID:        change.ID,
		OrderID:   order.ID,
		Category:  category,
		Title:     statusTitle(change.ToStatus),
		Stage:     stage,
		Status:    change.ToStatus,
		ActorID:   change.ActorID,
		ActorType: change.ActorType,
		At:        change.At,
	}
	if change.Note != nil {
		ev.Detail = *change.Note
	}
	return ev
}

func quoteEvent(order *orders.Order, q quotes.Quote, src quotes.QuoteEvent) Event {
	ev := Event{
		ID:        src.ID,
		OrderID:   order.ID,
		Category:  CategoryQuote,
		Title:     fmt.Sprintf("Quote %s %s", q.QuoteNumber, quoteStatusTitle(src.Status)),
		ActorID:   src.ActorID,
		ActorType: src.ActorType,
		At:        src.At,
	}
	if src.Note != nil {
		ev.Detail = *src.Note
	}
	if src.PreviousOffer != nil && src.NewOffer != nil {
		ev.Detail = fmt.Sprintf("offer moved from %d to %d", *src.PreviousOffer, *src.NewOffer)
	}
	return ev
}

// synthesizeMissing fills in stages the order has demonstrably passed but
// whose transition was never recorded. Each synthesized entry is anchored to
// the first real event at or after the missing stage, falling back to the
// order's creation time.
func synthesizeMissing(order *orders.Order, seen map[workflow.Stage]bool) []Event {
	progress := workflow.CalculateProgress(order.Status)
	if progress.IsTerminal && len(progress.CompletedStages) == 0 {
		return nil
	}

	anchors := stageAnchors(order)
	var out []Event
	for _, stage := range progress.CompletedStages {
		if seen[stage] {
			continue
		}
		status := workflow.MapStageToStatus(stage)
		at := order.CreatedAt
		if anchor, ok := anchors[stage]; ok {
			at = anchor
		}
		info, _ := workflow.StageDetails(stage)
		out = append(out, Event{
			ID:        fmt.Sprintf("synthetic-%s-%s", order.ID, stage),
			OrderID:   order.ID,
			Category:  CategorySystem,
			Title:     statusTitle(status),
			Detail:    fmt.Sprintf("inferred: %s", info.Label),
			Stage:     stage,
			Status:    status,
			ActorID:   shared.SystemActor.ID,
			ActorType: shared.ActorSystem,
			At:        at,
			Synthetic: true,
		})
	}
	return out
}

// stageAnchors maps each missing stage to the time of the first recorded
// event at a later stage.
func stageAnchors(order *orders.Order) map[workflow.Stage]time.Time {
	type point struct {
		idx int
		at  time.Time
	}
	var points []point
	for _, change := range order.History {
		stage := workflow.MapStatusToStage(change.ToStatus)
		points = append(points, point{idx: stage.Index(), at: change.At})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].idx < points[j].idx })

	anchors := make(map[workflow.Stage]time.Time)
	flow := workflow.Flow()
	for i, stage := range flow {
		for _, p := range points {
			if p.idx >= i {
				anchors[stage] = p.at
				break
			}
		}
	}
	return anchors
}

func statusTitle(status workflow.Status) string {
	// cancelled and refunded fold into draft/completed stage-wise, which
	// would give misleading labels here
	switch status {
	case workflow.StatusCancelled:
		return "Order cancelled"
	case workflow.StatusRefunded:
		return "Order refunded"
	}
	stage := workflow.MapStatusToStage(status)
	if info, ok := workflow.StageDetails(stage); ok {
		return info.Label
	}
	return string(status)
}

func quoteStatusTitle(status quotes.QuoteStatus) string {
	switch status {
	case quotes.QuoteStatusDraft:
		return "drafted"
	case quotes.QuoteStatusSent:
		return "sent to vendor"
	case quotes.QuoteStatusPendingResponse:
		return "acknowledged by vendor"
	case quotes.QuoteStatusCountered:
		return "countered"
	case quotes.QuoteStatusAccepted:
		return "accepted"
	case quotes.QuoteStatusRejected:
		return "rejected"
	case quotes.QuoteStatusExpired:
		return "expired"
	case quotes.QuoteStatusCancelled:
		return "cancelled"
	}
	return string(status)
}
