package webhooks

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	apperrors "shopmirror/internal/pkg/errors"
)

// Wire payload shapes as the commerce platform sends them. Money arrives as
// decimal strings; shipping sits under a price-set envelope.

type orderPayload struct {
	ID                    int64            `json:"id"`
	Email                 string           `json:"email"`
	Currency              string           `json:"currency"`
	FinancialStatus       string           `json:"financial_status"`
	FulfillmentStatus     string           `json:"fulfillment_status"`
	SubtotalPrice         string           `json:"subtotal_price"`
	TotalTax              string           `json:"total_tax"`
	TotalDiscounts        string           `json:"total_discounts"`
	TotalPrice            string           `json:"total_price"`
	TotalShippingPriceSet *priceSet        `json:"total_shipping_price_set"`
	LineItems             json.RawMessage  `json:"line_items"`
	BillingAddress        json.RawMessage  `json:"billing_address"`
	ShippingAddress       json.RawMessage  `json:"shipping_address"`
	Customer              *customerPayload `json:"customer"`
	CreatedAt             string           `json:"created_at"`
	UpdatedAt             string           `json:"updated_at"`
}

type priceSet struct {
	ShopMoney struct {
		Amount string `json:"amount"`
	} `json:"shop_money"`
}

type customerPayload struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	AcceptsMarketing *bool  `json:"accepts_marketing"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type productPayload struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Vendor    string           `json:"vendor"`
	Status    string           `json:"status"`
	Variants  []variantPayload `json:"variants"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

type variantPayload struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	SKU            string  `json:"sku"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compare_at_price"`
}

// Normalize parses a raw body into the typed event for its topic. Unrecognized
// topics return NoOpEvent, never an error. Malformed JSON or missing required
// fields (external id, source creation timestamp) fail with ValidationError.
func Normalize(topic string, body []byte) (Event, error) {
	switch topic {
	case TopicOrdersCreate, TopicOrdersUpdated, TopicOrdersPaid:
		return normalizeOrder(topic, body)
	case TopicCustomersCreate, TopicCustomersUpdate:
		return normalizeCustomer(topic, body)
	case TopicProductsCreate, TopicProductsUpdate:
		return normalizeProduct(topic, body)
	case TopicAppUninstalled:
		return &AppUninstalledEvent{TopicName: topic}, nil
	default:
		return &NoOpEvent{TopicName: topic}, nil
	}
}

func normalizeOrder(topic string, body []byte) (Event, error) {
	var p orderPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &apperrors.ValidationError{Reason: "malformed JSON body"}
	}
	createdAt, updatedAt, err := requireTimestamps(p.ID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	event := &OrderEvent{
		TopicName:         topic,
		ID:                strconv.FormatInt(p.ID, 10),
		Currency:          p.Currency,
		FinancialStatus:   p.FinancialStatus,
		FulfillmentStatus: p.FulfillmentStatus,
		Email:             p.Email,
		LineItems:         rawOrEmptyArray(p.LineItems),
		BillingAddress:    string(p.BillingAddress),
		ShippingAddress:   string(p.ShippingAddress),
		SourceCreatedAt:   createdAt,
		SourceUpdatedAt:   updatedAt,
	}
	// Absent financial status defaults to pending. Policy, not invariant:
	// aggregates are recomputed from rows so the default cannot drift totals.
	if event.FinancialStatus == "" {
		event.FinancialStatus = "pending"
	}

	for _, m := range []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&event.Subtotal, p.SubtotalPrice, "subtotal_price"},
		{&event.TotalTax, p.TotalTax, "total_tax"},
		{&event.TotalDiscounts, p.TotalDiscounts, "total_discounts"},
		{&event.Total, p.TotalPrice, "total_price"},
	} {
		d, err := parseMoney(m.src)
		if err != nil {
			return nil, &apperrors.ValidationError{Field: m.name, Reason: "invalid money amount"}
		}
		*m.dst = d
	}
	if p.TotalShippingPriceSet != nil {
		d, err := parseMoney(p.TotalShippingPriceSet.ShopMoney.Amount)
		if err != nil {
			return nil, &apperrors.ValidationError{Field: "total_shipping_price_set", Reason: "invalid money amount"}
		}
		event.TotalShipping = d
	}

	if p.Customer != nil && p.Customer.ID != 0 {
		event.CustomerExternalID = strconv.FormatInt(p.Customer.ID, 10)
		event.Customer = &CustomerFields{
			FirstName:        p.Customer.FirstName,
			LastName:         p.Customer.LastName,
			Email:            p.Customer.Email,
			Phone:            p.Customer.Phone,
			AcceptsMarketing: p.Customer.AcceptsMarketing,
		}
	}
	return event, nil
}

func normalizeCustomer(topic string, body []byte) (Event, error) {
	var p customerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &apperrors.ValidationError{Reason: "malformed JSON body"}
	}
	createdAt, updatedAt, err := requireTimestamps(p.ID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &CustomerEvent{
		TopicName: topic,
		ID:        strconv.FormatInt(p.ID, 10),
		Fields: CustomerFields{
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			Email:            p.Email,
			Phone:            p.Phone,
			AcceptsMarketing: p.AcceptsMarketing,
		},
		SourceCreatedAt: createdAt,
		SourceUpdatedAt: updatedAt,
	}, nil
}

func normalizeProduct(topic string, body []byte) (Event, error) {
	var p productPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &apperrors.ValidationError{Reason: "malformed JSON body"}
	}
	createdAt, updatedAt, err := requireTimestamps(p.ID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	event := &ProductEvent{
		TopicName:       topic,
		ID:              strconv.FormatInt(p.ID, 10),
		Title:           p.Title,
		Vendor:          p.Vendor,
		Status:          p.Status,
		SourceCreatedAt: createdAt,
		SourceUpdatedAt: updatedAt,
	}
	if event.Status == "" {
		event.Status = "active"
	}

	for _, v := range p.Variants {
		price, err := parseMoney(v.Price)
		if err != nil {
			return nil, &apperrors.ValidationError{Field: "variants.price", Reason: "invalid money amount"}
		}
		variant := Variant{ID: v.ID, Title: v.Title, SKU: v.SKU, Price: price}
		if v.CompareAtPrice != nil && *v.CompareAtPrice != "" {
			compareAt, err := decimal.NewFromString(*v.CompareAtPrice)
			if err != nil {
				return nil, &apperrors.ValidationError{Field: "variants.compare_at_price", Reason: "invalid money amount"}
			}
			variant.CompareAtPrice = &compareAt
		}
		event.Variants = append(event.Variants, variant)
	}

	variantsJSON, err := json.Marshal(p.Variants)
	if err != nil {
		return nil, &apperrors.ValidationError{Field: "variants", Reason: "unserializable variant list"}
	}
	event.VariantsJSON = string(variantsJSON)

	return event, nil
}

func requireTimestamps(id int64, createdAt, updatedAt string) (int64, int64, error) {
	if id == 0 {
		return 0, 0, &apperrors.ValidationError{Field: "id", Reason: "missing external id"}
	}
	if createdAt == "" {
		return 0, 0, &apperrors.ValidationError{Field: "created_at", Reason: "missing creation timestamp"}
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return 0, 0, &apperrors.ValidationError{Field: "created_at", Reason: "invalid timestamp"}
	}
	updated := created
	if updatedAt != "" {
		updated, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return 0, 0, &apperrors.ValidationError{Field: "updated_at", Reason: "invalid timestamp"}
		}
	}
	return created.Unix(), updated.Unix(), nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func rawOrEmptyArray(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
