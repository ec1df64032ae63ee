package autopay

import (
	"math"

	"github.com/shopspring/decimal"
)

// MonthlyInstallment computes the fixed annuity payment for a loan:
// principal * r * (1+r)^n / ((1+r)^n - 1) with r the monthly rate.
// A zero rate degenerates to straight-line principal / term.
func MonthlyInstallment(principal decimal.Decimal, annualRatePercent float64, termMonths int) decimal.Decimal {
	if termMonths <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}

	if annualRatePercent == 0 {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
	}

	monthlyRate := annualRatePercent / 100 / 12
	factor := math.Pow(1+monthlyRate, float64(termMonths))

	p := principal.InexactFloat64()
	payment := p * monthlyRate * factor / (factor - 1)

	return decimal.NewFromFloat(payment).Round(2)
}
