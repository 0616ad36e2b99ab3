package types

import "github.com/shopspring/decimal"

// FormatCents renders integer cents as a fixed two-decimal string.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

// FinalPriceCents applies the promotional price when it undercuts the list price.
func FinalPriceCents(priceCents int64, promoCents *int64) int64 {
	if promoCents != nil && *promoCents >= 0 && *promoCents < priceCents {
		return *promoCents
	}
	return priceCents
}
