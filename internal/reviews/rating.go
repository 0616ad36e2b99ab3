package reviews

import "github.com/shopspring/decimal"

// Average returns sum/count rounded half away from zero to one decimal.
func Average(sum, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(sum)).
		Div(decimal.NewFromInt(int64(count))).
		Round(1)
}
