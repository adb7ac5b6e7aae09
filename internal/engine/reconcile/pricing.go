package reconcile

import (
	"github.com/shopspring/decimal"
	"shopmirror/internal/engine/webhooks"
)

// DerivePricing recomputes the product's derived prices from the incoming
// variant list: price is the minimum variant price, compare-at is the minimum
// of the variants that set one (nil when none do).
func DerivePricing(variants []webhooks.Variant) (decimal.Decimal, *decimal.Decimal) {
	if len(variants) == 0 {
		return decimal.Zero, nil
	}

	price := variants[0].Price
	var compareAt *decimal.Decimal

	for _, v := range variants {
		if v.Price.LessThan(price) {
			price = v.Price
		}
		if v.CompareAtPrice != nil {
			if compareAt == nil || v.CompareAtPrice.LessThan(*compareAt) {
				val := *v.CompareAtPrice
				compareAt = &val
			}
		}
	}
	return price, compareAt
}
