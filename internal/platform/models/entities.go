package models

import "github.com/shopspring/decimal"

// Mirrored entities live in the tenant database, keyed by the external id the
// commerce platform assigns. PII columns (Enc*) hold versioned AES-GCM
// envelopes and are never used for lookups.

type Customer struct {
	ExternalID       string          `json:"external_id"`
	EncFirstName     string          `json:"-"`
	EncLastName      string          `json:"-"`
	EncEmail         string          `json:"-"`
	EncPhone         string          `json:"-"`
	OrdersCount      int             `json:"orders_count"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	LastOrderAt      *int64          `json:"last_order_at,omitempty"`
	AcceptsMarketing bool            `json:"accepts_marketing"`
	CreatedAt        int64           `json:"created_at"`
	UpdatedAt        int64           `json:"updated_at"`
}

type Order struct {
	ExternalID         string          `json:"external_id"`
	CustomerExternalID string          `json:"customer_external_id,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TotalTax           decimal.Decimal `json:"total_tax"`
	TotalDiscounts     decimal.Decimal `json:"total_discounts"`
	TotalShipping      decimal.Decimal `json:"total_shipping"`
	Total              decimal.Decimal `json:"total"`
	Currency           string          `json:"currency"`
	FinancialStatus    string          `json:"financial_status"`
	FulfillmentStatus  string          `json:"fulfillment_status,omitempty"`
	LineItems          string          `json:"line_items"` // JSON snapshot, immutable after insert
	EncBillingAddress  string          `json:"-"`
	EncShippingAddress string          `json:"-"`
	EncEmail           string          `json:"-"`
	SourceCreatedAt    int64           `json:"source_created_at"`
	SourceUpdatedAt    int64           `json:"source_updated_at"`
	CreatedAt          int64           `json:"created_at"`
	UpdatedAt          int64           `json:"updated_at"`
}

type Product struct {
	ExternalID     string           `json:"external_id"`
	Title          string           `json:"title"`
	Vendor         string           `json:"vendor"`
	Status         string           `json:"status"`
	Variants       string           `json:"variants"` // JSON
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}
