package domain

import "errors"

var (
	ErrServiceUnavailable  = errors.New("payments_unavailable")
	ErrInvalidBankDetails  = errors.New("invalid_bank_details")
	ErrPaymentNotCompleted = errors.New("payment_not_completed")
	ErrMissingIntent       = errors.New("missing_payment_intent")
)
