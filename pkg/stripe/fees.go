package stripe

import "github.com/shopspring/decimal"

// Australian domestic card pricing: 1.7% + A$0.30 per transaction.
var (
	feeRate       = decimal.NewFromFloat(0.017)
	feeFixedCents = decimal.NewFromInt(30)
)

// SurchargeCents returns the processing fee to pass on to the customer so
// the organiser receives roughly the listed ticket price. Rounded half-up
// to the nearest cent.
func SurchargeCents(amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	amount := decimal.NewFromInt(amountCents)
	surcharge := amount.Mul(feeRate).Add(feeFixedCents)
	return surcharge.Round(0).IntPart()
}

// TotalWithSurchargeCents is the amount to charge when the fee is passed on.
func TotalWithSurchargeCents(amountCents int64) int64 {
	return amountCents + SurchargeCents(amountCents)
}
