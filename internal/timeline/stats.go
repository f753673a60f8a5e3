package timeline

import (
	"sort"
	"time"

	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/workflow"
)

// Stats aggregates a generated timeline for observability dashboards.
type Stats struct {
	Total             int                        `json:"total"`
	Synthetic         int                        `json:"synthetic"`
	ByCategory        map[Category]int           `json:"by_category"`
	ByActor           map[shared.ActorType]int   `json:"by_actor"`
	StageDwellHours   map[workflow.Stage]float64 `json:"stage_dwell_hours,omitempty"`
	AverageDwellHours float64                    `json:"average_dwell_hours"`
	FirstEventAt      *time.Time                 `json:"first_event_at,omitempty"`
	LastEventAt       *time.Time                 `json:"last_event_at,omitempty"`
}

// ComputeStats counts events by category and actor and measures how long the
// order dwelled in each stage it has left. Dwell is the gap between
// consecutive real status events; synthesized entries carry no timing signal
// and are excluded from dwell math.
func ComputeStats(events []Event) Stats {
	stats := Stats{
		ByCategory: make(map[Category]int),
		ByActor:    make(map[shared.ActorType]int),
	}

	type stagePoint struct {
		stage workflow.Stage
		at    time.Time
	}
	var points []stagePoint

	for _, ev := range events {
		stats.Total++
		stats.ByCategory[ev.Category]++
		stats.ByActor[ev.ActorType]++
		if ev.Synthetic {
			stats.Synthetic++
			continue
		}
		if ev.Status != "" && !ev.Status.IsTerminal() {
			points = append(points, stagePoint{stage: ev.Stage, at: ev.At})
		}
		if stats.FirstEventAt == nil || ev.At.Before(*stats.FirstEventAt) {
			at := ev.At
			stats.FirstEventAt = &at
		}
		if stats.LastEventAt == nil || ev.At.After(*stats.LastEventAt) {
			at := ev.At
			stats.LastEventAt = &at
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	if len(points) > 1 {
		stats.StageDwellHours = make(map[workflow.Stage]float64)
		var totalHours float64
		for i := 1; i < len(points); i++ {
			dwell := points[i].at.Sub(points[i-1].at).Hours()
			stats.StageDwellHours[points[i-1].stage] += dwell
			totalHours += dwell
		}
		stats.AverageDwellHours = totalHours / float64(len(points)-1)
	}
	return stats
}
