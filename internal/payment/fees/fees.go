// Package fees computes the card and ACH processing fees passed through
// to the customer. All math is integer cents; rounding happens once, at
// the end, half-up.
package fees

// Processing fee schedule. Card is 2.9% + $0.30; ACH is 0.8% capped at $5.
const (
	cardRatePerMille = 29  // 2.9%
	cardFlatCents    = 30  // $0.30
	achRatePerMille  = 8   // 0.8%
	achCapCents      = 500 // $5.00
)

// Methods accepted by the fee schedule. Wallet payments settle as card
// transactions and carry the card fee. Anything else carries no fee.
const (
	MethodCard      = "card"
	MethodApplePay  = "apple_pay"
	MethodGooglePay = "google_pay"
	MethodACH       = "ach"
)

// FeeCents returns the processing fee in cents for the given payment
// method and invoice amount. Unknown methods are fee-free.
func FeeCents(method string, amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	switch method {
	case MethodCard, MethodApplePay, MethodGooglePay:
		return roundPerMilleHalfUp(amountCents*cardRatePerMille) + cardFlatCents
	case MethodACH:
		fee := roundPerMilleHalfUp(amountCents * achRatePerMille)
		if fee > achCapCents {
			return achCapCents
		}
		return fee
	default:
		return 0
	}
}

// TotalCents returns the fee-inflated amount the customer is charged.
func TotalCents(method string, amountCents int64) int64 {
	return amountCents + FeeCents(method, amountCents)
}

// roundPerMilleHalfUp divides a per-mille product by 1000, rounding
// half-up instead of truncating.
func roundPerMilleHalfUp(v int64) int64 {
	return (v + 500) / 1000
}
