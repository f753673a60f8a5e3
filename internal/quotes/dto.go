package quotes

type StartQuoteRequest struct {
	TenantID      string  `json:"tenant_id" validate:"required"`
	OrderID       string  `json:"order_id" validate:"required"`
	VendorID      string  `json:"vendor_id" validate:"required"`
	Offer         int64   `json:"offer" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"required,len=3"`
	ExpiresInDays *int    `json:"expires_in_days,omitempty" validate:"omitempty,gt=0,lte=365"`
	Note          *string `json:"note,omitempty"`
}

type AcceptQuoteRequest struct {
	Note *string `json:"note,omitempty"`
}

// RejectQuoteRequest requires a substantive reason; one-word rejections are
// useless to the next negotiator.
type RejectQuoteRequest struct {
	Reason string `json:"reason" validate:"required,min=10"`
}

type CounterQuoteRequest struct {
	Offer int64   `json:"offer" validate:"required,gt=0"`
	Note  *string `json:"note,omitempty"`
}

type ExtendExpirationRequest struct {
	Days int `json:"days" validate:"required,gt=0,lte=365"`
}

// QuoteStats summarizes the negotiation state of one order.
type QuoteStats struct {
	Total         int                 `json:"total"`
	ByStatus      map[QuoteStatus]int `json:"by_status"`
	ActiveCount   int                 `json:"active_count"`
	AverageRounds float64             `json:"average_rounds"`
	LowestOffer   *int64              `json:"lowest_offer,omitempty"`
	HighestOffer  *int64              `json:"highest_offer,omitempty"`
}
