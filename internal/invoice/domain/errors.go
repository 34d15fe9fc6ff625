package domain

import "errors"

var (
	ErrNotFound       = errors.New("invoice_not_found")
	ErrAlreadyPaid    = errors.New("invoice_already_paid")
	ErrInvalidNumber  = errors.New("invalid_invoice_number")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrMissingFields  = errors.New("missing_required_fields")
	ErrInvalidStatus  = errors.New("invalid_invoice_status")
	ErrDuplicateEntry = errors.New("duplicate_invoice_number")
)
