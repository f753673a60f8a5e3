package workflow

import (
	"log/slog"
	"strings"
)

// statusToStage is the canonical forward table. Exactly one entry per status;
// the reverse index is derived from canonicalStatus below, never scanned.
var statusToStage = map[Status]Stage{
	StatusNew:               StageDraft,
	StatusDraft:             StageDraft,
	StatusPending:           StagePending,
	StatusVendorSourcing:    StageVendorSourcing,
	StatusVendorNegotiation: StageVendorNegotiation,
	StatusCustomerQuote:     StageCustomerQuote,
	StatusAwaitingPayment:   StageAwaitingPayment,
	StatusPartialPayment:    StagePartialPayment,
	StatusFullPayment:       StageFullPayment,
	StatusProcessing:        StageInProduction,
	StatusInProduction:      StageInProduction,
	StatusQualityControl:    StageQualityControl,
	StatusShipping:          StageShipping,
	StatusCompleted:         StageCompleted,
	// Terminal statuses sit outside the linear order; progress handles them
	// separately, the mapping is only a fallback for display.
	StatusCancelled: StageDraft,
	StatusRefunded:  StageCompleted,
}

// canonicalStatus names the single status used when mapping a stage back to a
// status. Aliases like "new" and "processing" map forward but never backward.
var canonicalStatus = map[Stage]Status{
	StageDraft:             StatusDraft,
	StagePending:           StatusPending,
	StageVendorSourcing:    StatusVendorSourcing,
	StageVendorNegotiation: StatusVendorNegotiation,
	StageCustomerQuote:     StatusCustomerQuote,
	StageAwaitingPayment:   StatusAwaitingPayment,
	StagePartialPayment:    StatusPartialPayment,
	StageFullPayment:       StatusFullPayment,
	StageInProduction:      StatusInProduction,
	StageQualityControl:    StatusQualityControl,
	StageShipping:          StatusShipping,
	StageCompleted:         StatusCompleted,
}

// MapStatusToStage maps a persisted status to its business stage. The mapping
// is total: legacy or unknown statuses fall back to DRAFT with a warning
// instead of failing.
func MapStatusToStage(status Status) Stage {
	stage, ok := statusToStage[status]
	if !ok {
		slog.Warn("no business stage mapping for status, defaulting to draft",
			slog.String("status", string(status)))
		return StageDraft
	}
	return stage
}

// MapStageToStatus returns the canonical status for a stage. It is a left
// inverse of MapStatusToStage over canonical statuses.
func MapStageToStatus(stage Stage) Status {
	status, ok := canonicalStatus[stage]
	if !ok {
		return StatusDraft
	}
	return status
}

// statusKeywords is scanned in order so that longer, more specific keys win
// before their substrings ("vendor_sourcing" before "pending").
var statusKeywords = []struct {
	keyword string
	status  Status
}{
	{"vendor_sourcing", StatusVendorSourcing},
	{"vendor_negotiation", StatusVendorNegotiation},
	{"customer_quote", StatusCustomerQuote},
	{"awaiting_payment", StatusAwaitingPayment},
	{"payment_pending", StatusAwaitingPayment},
	{"partial_payment", StatusPartialPayment},
	{"full_payment", StatusFullPayment},
	{"in_production", StatusInProduction},
	{"production_start", StatusInProduction},
	{"quality_control", StatusQualityControl},
	{"shipping", StatusShipping},
	{"completed", StatusCompleted},
	{"cancelled", StatusCancelled},
	{"refunded", StatusRefunded},
	{"created", StatusNew},
	{"draft", StatusDraft},
	{"pending", StatusPending},
}

// InferStatusFromText makes a best-effort guess of the status referenced by a
// free-text event description. The second result is false when nothing
// matches; callers must treat that as unknown, not as DRAFT.
func InferStatusFromText(text string) (Status, bool) {
	lowered := strings.ToLower(text)
	for _, entry := range statusKeywords {
		if strings.Contains(lowered, entry.keyword) {
			return entry.status, true
		}
	}
	return "", false
}
