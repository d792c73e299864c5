package money

import "math"

// SettleTolerance is the residue (in the currency's minor unit) below which
// a balance due counts as fully paid. Multi-tender sums routinely leave a
// fraction of a cent behind, so settlement never compares against exact zero.
const SettleTolerance = 0.01

var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// Decimals returns the display precision for a currency code. Unknown codes
// default to 2.
func Decimals(currency string) int {
	if zeroDecimalCurrencies[currency] {
		return 0
	}
	return 2
}

// ApplyPercent computes base * percent / 100 without rounding. Rounding is
// deferred to the final monetary fields so staged pipelines do not compound
// rounding error.
func ApplyPercent(base float64, percent float64) float64 {
	return base * percent / 100
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// Settled reports whether a balance due is satisfied within tolerance.
// Negative balances (overpayment) are settled by definition.
func Settled(balanceDue float64) bool {
	return balanceDue <= SettleTolerance
}

// Change returns the overpayment owed back to the customer, zero when the
// balance is non-negative.
func Change(balanceDue float64) float64 {
	if balanceDue < 0 {
		return -balanceDue
	}
	return 0
}
