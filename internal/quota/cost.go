package quota

import "github.com/shopspring/decimal"

// CostPrecision is the number of decimal places a settlement is rounded to
const CostPrecision = 6

var secondsPerHour = decimal.NewFromInt(3600)

// CostFor converts billable seconds into currency at pricePerHour. The
// result is rounded half away from zero to CostPrecision places; zero or
// negative durations cost nothing.
func CostFor(seconds float64, pricePerHour decimal.Decimal) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(seconds).
		Div(secondsPerHour).
		Mul(pricePerHour).
		Round(CostPrecision)
}
