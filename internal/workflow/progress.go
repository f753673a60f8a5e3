package workflow

import "math"

// Progress describes how far an order has advanced through the business flow.
type Progress struct {
	CurrentStage    Stage   `json:"current_stage"`
	CompletedStages []Stage `json:"completed_stages"`
	NextStage       Stage   `json:"next_stage,omitempty"`
	Percentage      int     `json:"percentage"`
	StageIndex      int     `json:"stage_index"`
	TotalStages     int     `json:"total_stages"`
	IsTerminal      bool    `json:"is_terminal"`
	CanProgress     bool    `json:"can_progress"`
}

// CalculateProgress computes completed/current/next stage and completion
// percentage for a status. Pure: UI projections and server derivations must
// agree bit for bit.
func CalculateProgress(status Status) Progress {
	switch status {
	case StatusCancelled:
		return terminalProgress(0)
	case StatusRefunded:
		// Refund presumes prior completion.
		return terminalProgress(100)
	}

	stage := MapStatusToStage(status)
	idx := stage.Index()
	if idx < 0 {
		idx = 0
		stage = StageDraft
	}

	completed := make([]Stage, idx)
	copy(completed, businessFlow[:idx])

	next := stage.Next()
	isLast := idx == len(businessFlow)-1

	return Progress{
		CurrentStage:    stage,
		CompletedStages: completed,
		NextStage:       next,
		Percentage:      stagePercentage(idx),
		StageIndex:      idx,
		TotalStages:     len(businessFlow),
		IsTerminal:      isLast,
		CanProgress:     !isLast && next != "",
	}
}

func terminalProgress(percentage int) Progress {
	return Progress{
		CurrentStage:    StageDraft,
		CompletedStages: []Stage{},
		Percentage:      percentage,
		StageIndex:      -1,
		TotalStages:     len(businessFlow),
		IsTerminal:      true,
		CanProgress:     false,
	}
}

func stagePercentage(idx int) int {
	return int(math.Round(float64(idx) / float64(len(businessFlow)-1) * 100))
}

// StagePercentage returns the completion percentage a stage represents within
// the overall workflow.
func StagePercentage(stage Stage) int {
	idx := stage.Index()
	if idx < 0 {
		return 0
	}
	return stagePercentage(idx)
}

// NextValidStages lists the stages an order may move to from the current one:
// the immediate successor plus the documented shortcuts (payment skipping and
// the QC-reject path back to production).
func NextValidStages(current Stage) []Stage {
	idx := current.Index()
	if idx < 0 || idx == len(businessFlow)-1 {
		return nil
	}

	next := []Stage{businessFlow[idx+1]}
	switch current {
	case StageAwaitingPayment:
		next = append(next, StageFullPayment)
	case StageQualityControl:
		next = append(next, StageInProduction)
	}

	seen := make(map[Stage]struct{}, len(next))
	out := next[:0]
	for _, stage := range next {
		if _, dup := seen[stage]; dup {
			continue
		}
		seen[stage] = struct{}{}
		out = append(out, stage)
	}
	return out
}

// CanTransition reports whether target is reachable from current in one step.
func CanTransition(current, target Stage) bool {
	for _, stage := range NextValidStages(current) {
		if stage == target {
			return true
		}
	}
	return false
}
