// Package workflow encodes the purchase-order business workflow: the ordered
// stage catalog, status-to-stage mapping, progress calculation, and the
// risk-tiered transition confirmation rules. Everything here is pure; server
// handlers and client projections must derive identical results from it.
package workflow

// Stage is one of the 12 ordered phases of an order's life, coarser than the
// persisted Status values.
type Stage string

const (
	StageDraft             Stage = "draft"
	StagePending           Stage = "pending"
	StageVendorSourcing    Stage = "vendor_sourcing"
	StageVendorNegotiation Stage = "vendor_negotiation"
	StageCustomerQuote     Stage = "customer_quote"
	StageAwaitingPayment   Stage = "awaiting_payment"
	StagePartialPayment    Stage = "partial_payment"
	StageFullPayment       Stage = "full_payment"
	StageInProduction      Stage = "in_production"
	StageQualityControl    Stage = "quality_control"
	StageShipping          Stage = "shipping"
	StageCompleted         Stage = "completed"
)

// businessFlow is the complete workflow in order. Index positions drive the
// progress percentage, so the slice must never be reordered.
var businessFlow = []Stage{
	StageDraft,
	StagePending,
	StageVendorSourcing,
	StageVendorNegotiation,
	StageCustomerQuote,
	StageAwaitingPayment,
	StagePartialPayment,
	StageFullPayment,
	StageInProduction,
	StageQualityControl,
	StageShipping,
	StageCompleted,
}

// Flow returns a copy of the ordered business flow.
func Flow() []Stage {
	out := make([]Stage, len(businessFlow))
	copy(out, businessFlow)
	return out
}

// TotalStages is the number of linear workflow stages.
const TotalStages = 12

// Index returns the position of the stage in the business flow, or -1 when the
// stage is not part of the linear order.
func (s Stage) Index() int {
	for i, stage := range businessFlow {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage in the flow, or "" when s is last or not in
// the flow.
func (s Stage) Next() Stage {
	idx := s.Index()
	if idx < 0 || idx >= len(businessFlow)-1 {
		return ""
	}
	return businessFlow[idx+1]
}

// Status is the fine-grained persisted order status. Several statuses can map
// to the same Stage.
type Status string

const (
	StatusNew               Status = "new"
	StatusDraft             Status = "draft"
	StatusPending           Status = "pending"
	StatusVendorSourcing    Status = "vendor_sourcing"
	StatusVendorNegotiation Status = "vendor_negotiation"
	StatusCustomerQuote     Status = "customer_quote"
	StatusAwaitingPayment   Status = "awaiting_payment"
	StatusPartialPayment    Status = "partial_payment"
	StatusFullPayment       Status = "full_payment"
	// StatusProcessing is a legacy alias kept for rows written before the
	// production stages were split out.
	StatusProcessing     Status = "processing"
	StatusInProduction   Status = "in_production"
	StatusQualityControl Status = "quality_control"
	StatusShipping       Status = "shipping"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

// AllStatuses returns every known status, aliases included, in declaration
// order.
func AllStatuses() []Status {
	return []Status{
		StatusNew, StatusDraft, StatusPending, StatusVendorSourcing,
		StatusVendorNegotiation, StatusCustomerQuote, StatusAwaitingPayment,
		StatusPartialPayment, StatusFullPayment, StatusProcessing,
		StatusInProduction, StatusQualityControl, StatusShipping,
		StatusCompleted, StatusCancelled, StatusRefunded,
	}
}

// IsTerminal reports whether the status permits no further forward progress.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
