package quotes

import (
	"time"

	"github.com/sentra-orders/sentra/internal/shared"
)

type QuoteStatus string

const (
	QuoteStatusDraft           QuoteStatus = "draft"
	QuoteStatusSent            QuoteStatus = "sent"
	QuoteStatusPendingResponse QuoteStatus = "pending_response"
	QuoteStatusCountered       QuoteStatus = "countered"
	QuoteStatusAccepted        QuoteStatus = "accepted"
	QuoteStatusRejected        QuoteStatus = "rejected"
	QuoteStatusExpired         QuoteStatus = "expired"
	QuoteStatusCancelled       QuoteStatus = "cancelled"
)

// ActiveStatuses are the negotiation states a quote can still move out of.
// At most one quote per (order, vendor) may hold one of these at a time.
func ActiveStatuses() []QuoteStatus {
	return []QuoteStatus{QuoteStatusDraft, QuoteStatusSent, QuoteStatusPendingResponse, QuoteStatusCountered}
}

// IsActive reports whether the status still permits negotiation actions.
func (s QuoteStatus) IsActive() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusPendingResponse, QuoteStatusCountered:
		return true
	}
	return false
}

// IsTerminal reports whether the status is final.
func (s QuoteStatus) IsTerminal() bool {
	switch s {
	case QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired, QuoteStatusCancelled:
		return true
	}
	return false
}

// Quote is one vendor negotiation attached to an order. Offers are minor
// units of Currency. Round starts at 1 and only ever increases.
type Quote struct {
	ID           string       `json:"id" db:"id"`
	TenantID     string       `json:"tenant_id" db:"tenant_id"`
	OrderID      string       `json:"order_id" db:"order_id"`
	VendorID     string       `json:"vendor_id" db:"vendor_id"`
	QuoteNumber  string       `json:"quote_number" db:"quote_number"`
	Round        int          `json:"round" db:"round"`
	InitialOffer int64        `json:"initial_offer" db:"initial_offer"`
	LatestOffer  int64        `json:"latest_offer" db:"latest_offer"`
	Currency     string       `json:"currency" db:"currency"`
	Status       QuoteStatus  `json:"status" db:"status"`
	SentAt       *time.Time   `json:"sent_at,omitempty" db:"sent_at"`
	RespondedAt  *time.Time   `json:"responded_at,omitempty" db:"responded_at"`
	ClosedAt     *time.Time   `json:"closed_at,omitempty" db:"closed_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	Version      int64        `json:"version" db:"version"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
	History      []QuoteEvent `json:"history,omitempty" db:"-"`
}

// QuoteEvent is one entry of a quote's status history. Counter events carry
// the offer movement; PercentDelta is the relative change of the offer.
type QuoteEvent struct {
	ID            string           `json:"id" db:"id"`
	QuoteID       string           `json:"quote_id" db:"quote_id"`
	Status        QuoteStatus      `json:"status" db:"status"`
	Note          *string          `json:"note,omitempty" db:"note"`
	ActorID       string           `json:"actor_id" db:"actor_id"`
	ActorType     shared.ActorType `json:"actor_type" db:"actor_type"`
	PreviousOffer *int64           `json:"previous_offer,omitempty" db:"previous_offer"`
	NewOffer      *int64           `json:"new_offer,omitempty" db:"new_offer"`
	PercentDelta  *float64         `json:"percent_delta,omitempty" db:"percent_delta"`
	At            time.Time        `json:"at" db:"at"`
}

// ExpiredBy reports whether the quote's deadline has passed at the given
// instant. Quotes without a deadline never expire.
func (q *Quote) ExpiredBy(now time.Time) bool {
	return q.ExpiresAt != nil && !now.Before(*q.ExpiresAt)
}
