package workflow

// StageInfo carries static metadata for one business stage.
type StageInfo struct {
	Stage             Stage  `json:"stage"`
	Label             string `json:"label"`
	Description       string `json:"description"`
	IsPaymentStage    bool   `json:"is_payment_stage"`
	IsProductionStage bool   `json:"is_production_stage"`
	RequiresVendor    bool   `json:"requires_vendor"`
	// EstimatedDaysLeft is the typical time remaining to completion when an
	// order sits in this stage.
	EstimatedDaysLeft int `json:"estimated_days_left"`
}

var stageCatalog = map[Stage]StageInfo{
	StageDraft: {
		Stage:             StageDraft,
		Label:             "Draft Order",
		Description:       "Order received, awaiting admin review",
		EstimatedDaysLeft: 21,
	},
	StagePending: {
		Stage:             StagePending,
		Label:             "Pending Review",
		Description:       "Admin review completed, ready for processing",
		EstimatedDaysLeft: 18,
	},
	StageVendorSourcing: {
		Stage:             StageVendorSourcing,
		Label:             "Vendor Sourcing",
		Description:       "Finding suitable vendor for production",
		RequiresVendor:    true,
		EstimatedDaysLeft: 15,
	},
	StageVendorNegotiation: {
		Stage:             StageVendorNegotiation,
		Label:             "Vendor Negotiation",
		Description:       "Negotiating price and terms with vendor",
		RequiresVendor:    true,
		EstimatedDaysLeft: 12,
	},
	StageCustomerQuote: {
		Stage:             StageCustomerQuote,
		Label:             "Customer Quote",
		Description:       "Quote sent to customer for approval",
		RequiresVendor:    true,
		EstimatedDaysLeft: 10,
	},
	StageAwaitingPayment: {
		Stage:             StageAwaitingPayment,
		Label:             "Awaiting Payment",
		Description:       "Waiting for customer payment",
		IsPaymentStage:    true,
		RequiresVendor:    true,
		EstimatedDaysLeft: 8,
	},
	StagePartialPayment: {
		Stage:             StagePartialPayment,
		Label:             "Partial Payment",
		Description:       "Down payment received from customer",
		IsPaymentStage:    true,
		RequiresVendor:    true,
		EstimatedDaysLeft: 7,
	},
	StageFullPayment: {
		Stage:             StageFullPayment,
		Label:             "Payment Complete",
		Description:       "Full payment received, ready for production",
		IsPaymentStage:    true,
		RequiresVendor:    true,
		EstimatedDaysLeft: 7,
	},
	StageInProduction: {
		Stage:             StageInProduction,
		Label:             "In Production",
		Description:       "Order being produced by vendor",
		IsProductionStage: true,
		RequiresVendor:    true,
		EstimatedDaysLeft: 5,
	},
	StageQualityControl: {
		Stage:             StageQualityControl,
		Label:             "Quality Control",
		Description:       "Product quality inspection",
		IsProductionStage: true,
		RequiresVendor:    true,
		EstimatedDaysLeft: 2,
	},
	StageShipping: {
		Stage:             StageShipping,
		Label:             "Shipping",
		Description:       "Order being shipped to customer",
		IsProductionStage: true,
		RequiresVendor:    true,
		EstimatedDaysLeft: 1,
	},
	StageCompleted: {
		Stage:          StageCompleted,
		Label:          "Completed",
		Description:    "Order completed and accepted by customer",
		RequiresVendor: true,
	},
}

// StageDetails returns metadata for the given stage. The second result is
// false for stages outside the catalog.
func StageDetails(stage Stage) (StageInfo, bool) {
	info, ok := stageCatalog[stage]
	return info, ok
}

// CatalogInfo returns stage metadata for the whole flow in order.
func CatalogInfo() []StageInfo {
	out := make([]StageInfo, 0, len(businessFlow))
	for _, stage := range businessFlow {
		out = append(out, stageCatalog[stage])
	}
	return out
}

// IsPaymentStage reports whether the stage is payment-related.
func IsPaymentStage(stage Stage) bool {
	return stageCatalog[stage].IsPaymentStage
}

// IsProductionStage reports whether the stage is production-related.
func IsProductionStage(stage Stage) bool {
	return stageCatalog[stage].IsProductionStage
}

// StageRequiresVendor reports whether the stage needs a vendor assignment.
func StageRequiresVendor(stage Stage) bool {
	return stageCatalog[stage].RequiresVendor
}
