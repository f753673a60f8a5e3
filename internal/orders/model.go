package orders

import (
	"time"

	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/workflow"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is a purchase order moving through the sourcing workflow. Monetary
// amounts are minor units of Currency.
type Order struct {
	ID              string           `json:"id" db:"id"`
	TenantID        string           `json:"tenant_id" db:"tenant_id"`
	OrderNumber     string           `json:"order_number" db:"order_number"`
	CustomerID      string           `json:"customer_id" db:"customer_id"`
	VendorID        *string          `json:"vendor_id,omitempty" db:"vendor_id"`
	Status          workflow.Status  `json:"status" db:"status"`
	PaymentStatus   PaymentStatus    `json:"payment_status" db:"payment_status"`
	Currency        string           `json:"currency" db:"currency"`
	TotalAmount     int64            `json:"total_amount" db:"total_amount"`
	AmountPaid      int64            `json:"amount_paid" db:"amount_paid"`
	QuotationAmount *int64           `json:"quotation_amount,omitempty" db:"quotation_amount"`
	Notes           *string          `json:"notes,omitempty" db:"notes"`
	Metadata        map[string]any   `json:"metadata,omitempty" db:"metadata"`
	Version         int64            `json:"version" db:"version"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time       `json:"deleted_at,omitempty" db:"deleted_at"`
	Items           []OrderItem      `json:"items,omitempty" db:"-"`
	History         []StatusChange   `json:"history,omitempty" db:"-"`
}

type OrderItem struct {
	ID          string  `json:"id" db:"id"`
	OrderID     string  `json:"order_id" db:"order_id"`
	SKU         string  `json:"sku" db:"sku"`
	Description *string `json:"description,omitempty" db:"description"`
	Quantity    int     `json:"quantity" db:"quantity"`
	UnitPrice   int64   `json:"unit_price" db:"unit_price"`
	LineTotal   int64   `json:"line_total" db:"line_total"`
	Position    int     `json:"position" db:"position"`
}

// StatusChange is one entry of an order's status history. PercentDelta records
// how far the overall progress moved with this change, negative for reverts.
type StatusChange struct {
	ID           string           `json:"id" db:"id"`
	OrderID      string           `json:"order_id" db:"order_id"`
	FromStatus   *workflow.Status `json:"from_status,omitempty" db:"from_status"`
	ToStatus     workflow.Status  `json:"to_status" db:"to_status"`
	Note         *string          `json:"note,omitempty" db:"note"`
	ActorID      string           `json:"actor_id" db:"actor_id"`
	ActorType    shared.ActorType `json:"actor_type" db:"actor_type"`
	PercentDelta int              `json:"percent_delta" db:"percent_delta"`
	At           time.Time        `json:"at" db:"at"`
}

// Stage derives the workflow stage for the order's current status.
func (o *Order) Stage() workflow.Stage {
	return workflow.MapStatusToStage(o.Status)
}

// Outstanding is the unpaid remainder.
func (o *Order) Outstanding() int64 {
	return o.TotalAmount - o.AmountPaid
}
