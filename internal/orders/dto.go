package orders

import (
	"github.com/sentra-orders/sentra/internal/workflow"
)

type CreateOrderRequest struct {
	TenantID   string               `json:"tenant_id" validate:"required"`
	CustomerID string               `json:"customer_id" validate:"required"`
	VendorID   *string              `json:"vendor_id,omitempty"`
	Currency   string               `json:"currency" validate:"required,len=3"`
	Notes      *string              `json:"notes,omitempty"`
	Metadata   map[string]any       `json:"metadata,omitempty"`
	Items      []CreateOrderItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemReq struct {
	SKU         string  `json:"sku" validate:"required,max=64"`
	Description *string `json:"description,omitempty"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   int64   `json:"unit_price" validate:"required,gt=0"`
	Position    int     `json:"position" validate:"gte=0"`
}

// TransitionRequest moves an order to a target stage. Note and
// AcknowledgeRisk must satisfy the rules derived from the transition's
// severity.
type TransitionRequest struct {
	TargetStage     workflow.Stage `json:"target_stage" validate:"required"`
	Note            string         `json:"note,omitempty"`
	AcknowledgeRisk bool           `json:"acknowledge_risk,omitempty"`
}

type PaymentKind string

const (
	PaymentKindDeposit PaymentKind = "deposit"
	PaymentKindBalance PaymentKind = "balance"
	PaymentKindRefund  PaymentKind = "refund"
)

type PaymentRequest struct {
	Kind      PaymentKind `json:"kind" validate:"required,oneof=deposit balance refund"`
	Amount    int64       `json:"amount" validate:"required,gt=0"`
	Reference *string     `json:"reference,omitempty"`
}

type CancelRequest struct {
	Reason          string `json:"reason" validate:"required,min=10"`
	AcknowledgeRisk bool   `json:"acknowledge_risk"`
}

type ListOrdersRequest struct {
	TenantID   string           `json:"tenant_id" validate:"required"`
	CustomerID *string          `json:"customer_id,omitempty"`
	Status     *workflow.Status `json:"status,omitempty"`
	Stage      *workflow.Stage  `json:"stage,omitempty"`
	Page       int              `json:"page" validate:"gte=0"`
	PerPage    int              `json:"per_page" validate:"gte=0,lte=200"`
}
