package webhooks

import "github.com/shopspring/decimal"

// Webhook topics the pipeline reconciles. Anything else normalizes to NoOp.
const (
	TopicOrdersCreate    = "orders/create"
	TopicOrdersUpdated   = "orders/updated"
	TopicOrdersPaid      = "orders/paid"
	TopicCustomersCreate = "customers/create"
	TopicCustomersUpdate = "customers/update"
	TopicProductsCreate  = "products/create"
	TopicProductsUpdate  = "products/update"
	TopicAppUninstalled  = "app/uninstalled"
)

// Event is the normalized, topic-discriminated form of a delivery.
type Event interface {
	Topic() string
	EntityID() string
}

// CustomerFields is the plaintext PII subset of a customer payload. It is
// encrypted field-by-field before anything reaches the tenant database.
type CustomerFields struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	AcceptsMarketing *bool
}

type OrderEvent struct {
	TopicName          string
	ID                 string
	CustomerExternalID string
	Customer           *CustomerFields
	Subtotal           decimal.Decimal
	TotalTax           decimal.Decimal
	TotalDiscounts     decimal.Decimal
	TotalShipping      decimal.Decimal
	Total              decimal.Decimal
	Currency           string
	FinancialStatus    string
	FulfillmentStatus  string
	Email              string
	LineItems          string // raw JSON snapshot
	BillingAddress     string // raw JSON, encrypted before persist
	ShippingAddress    string
	SourceCreatedAt    int64
	SourceUpdatedAt    int64
}

func (e *OrderEvent) Topic() string    { return e.TopicName }
func (e *OrderEvent) EntityID() string { return e.ID }

type CustomerEvent struct {
	TopicName       string
	ID              string
	Fields          CustomerFields
	SourceCreatedAt int64
	SourceUpdatedAt int64
}

func (e *CustomerEvent) Topic() string    { return e.TopicName }
func (e *CustomerEvent) EntityID() string { return e.ID }

type Variant struct {
	ID             int64
	Title          string
	SKU            string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
}

type ProductEvent struct {
	TopicName       string
	ID              string
	Title           string
	Vendor          string
	Status          string
	Variants        []Variant
	VariantsJSON    string
	SourceCreatedAt int64
	SourceUpdatedAt int64
}

func (e *ProductEvent) Topic() string    { return e.TopicName }
func (e *ProductEvent) EntityID() string { return e.ID }

type AppUninstalledEvent struct {
	TopicName string
}

func (e *AppUninstalledEvent) Topic() string    { return e.TopicName }
func (e *AppUninstalledEvent) EntityID() string { return "" }

// NoOpEvent marks an unrecognized topic. It is accepted and recorded as
// processed with no side effect: rejecting unknown topics would put the
// sending platform into an endless retry loop.
type NoOpEvent struct {
	TopicName string
}

func (e *NoOpEvent) Topic() string    { return e.TopicName }
func (e *NoOpEvent) EntityID() string { return "" }
