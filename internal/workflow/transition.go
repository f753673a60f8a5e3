package workflow

// Severity grades how risky a stage transition is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Reason classifies why a transition needs confirmation.
type Reason string

const (
	ReasonDestructive    Reason = "destructive"
	ReasonFinancial      Reason = "financial"
	ReasonCustomerImpact Reason = "customer_impact"
	ReasonVendorImpact   Reason = "vendor_impact"
	ReasonNone           Reason = ""
)

// Confirmation is the outcome of evaluating a stage transition against the
// risk rules.
type Confirmation struct {
	Required    bool     `json:"required"`
	Reason      Reason   `json:"reason,omitempty"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
}

type criticalTransition struct {
	From        Stage
	To          Stage
	Severity    Severity
	Reason      Reason
	Description string
}

// criticalTransitions is the fixed risk table for known dangerous pairs.
// Completion is handled before the table, so SHIPPING -> COMPLETED only
// matters for documentation of the rationale.
var criticalTransitions = []criticalTransition{
	{
		From: StageFullPayment, To: StageInProduction,
		Severity: SeverityCritical, Reason: ReasonFinancial,
		Description: "Production start commits vendor capacity and customer capital",
	},
	{
		From: StagePartialPayment, To: StageInProduction,
		Severity: SeverityHigh, Reason: ReasonFinancial,
		Description: "Production would start before full payment is received",
	},
	{
		From: StageQualityControl, To: StageInProduction,
		Severity: SeverityHigh, Reason: ReasonVendorImpact,
		Description: "QC rejection sends the order back to the vendor for rework",
	},
	{
		From: StageShipping, To: StageCompleted,
		Severity: SeverityCritical, Reason: ReasonCustomerImpact,
		Description: "Completion confirms customer receipt and closes the order",
	},
	{
		From: StageCustomerQuote, To: StageVendorNegotiation,
		Severity: SeverityMedium, Reason: ReasonCustomerImpact,
		Description: "Moving backward withdraws the quote already sent to the customer",
	},
}

// RequiresConfirmation evaluates the risk rules for a stage transition.
// Rules are checked in order and the first match wins.
func RequiresConfirmation(from, to Stage) Confirmation {
	// 1. Completion is irreversible.
	if to == StageCompleted {
		return Confirmation{
			Required:    true,
			Reason:      ReasonDestructive,
			Severity:    SeverityCritical,
			Description: "Completing an order is final and cannot be undone",
		}
	}

	// 2. Known dangerous pairs.
	for _, entry := range criticalTransitions {
		if entry.From == from && entry.To == to {
			return Confirmation{
				Required:    true,
				Reason:      entry.Reason,
				Severity:    entry.Severity,
				Description: entry.Description,
			}
		}
	}

	// 3. Capital is committed at payment stages and production start.
	if IsPaymentStage(to) || to == StageInProduction {
		return Confirmation{
			Required:    true,
			Reason:      ReasonFinancial,
			Severity:    SeverityHigh,
			Description: "This transition involves customer funds",
		}
	}

	// 4. Customer-visible milestones.
	if to == StageShipping {
		return Confirmation{
			Required:    true,
			Reason:      ReasonCustomerImpact,
			Severity:    SeverityMedium,
			Description: "The customer is notified when the order ships",
		}
	}

	// 5. Vendor-facing rework.
	if from == StageQualityControl && to == StageInProduction {
		return Confirmation{
			Required:    true,
			Reason:      ReasonVendorImpact,
			Severity:    SeverityMedium,
			Description: "The vendor is asked to redo production work",
		}
	}

	return Confirmation{Severity: SeverityLow}
}

// ValidationRules are the derived policy thresholds for a severity level.
type ValidationRules struct {
	RequiresNotes              bool `json:"requires_notes"`
	MinimumNoteLength          int  `json:"minimum_note_length"`
	RequiresRiskAcknowledgment bool `json:"requires_risk_acknowledgment"`
}

// severityPolicy centralizes per-severity thresholds; call sites must never
// inline their own.
var severityPolicy = map[Severity]ValidationRules{
	SeverityLow:      {MinimumNoteLength: 0},
	SeverityMedium:   {MinimumNoteLength: 5},
	SeverityHigh:     {RequiresNotes: true, MinimumNoteLength: 10},
	SeverityCritical: {RequiresNotes: true, MinimumNoteLength: 20, RequiresRiskAcknowledgment: true},
}

// RulesFor returns confirmation thresholds for a transition outcome.
// Risk acknowledgment is also required for any destructive transition
// regardless of severity.
func RulesFor(c Confirmation) ValidationRules {
	rules := severityPolicy[c.Severity]
	if c.Reason == ReasonDestructive {
		rules.RequiresRiskAcknowledgment = true
	}
	return rules
}
