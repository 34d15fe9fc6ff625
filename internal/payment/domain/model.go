// Package domain defines the payment orchestration API surface.
package domain

import (
	"context"
	"time"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
)

// CreateCardPaymentRequest starts (or resumes) a card payment.
type CreateCardPaymentRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	Email         string `json:"email"`
}

// CreateCardPaymentResponse carries what the browser needs to collect
// the card: the intent client secret plus the fee breakdown, in dollars.
type CreateCardPaymentResponse struct {
	ClientSecret    string  `json:"client_secret"`
	PaymentIntentID string  `json:"payment_intent_id"`
	PublishableKey  string  `json:"publishable_key"`
	Amount          float64 `json:"amount"`
	Fee             float64 `json:"fee"`
	Total           float64 `json:"total"`
}

// ConfirmPaymentRequest finalizes a payment after the browser reports
// the intent as complete. The server re-checks with Stripe; the client
// claim alone settles nothing.
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type ConfirmPaymentResponse struct {
	Status        string  `json:"status"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        float64 `json:"amount"`
	PaidAt        string  `json:"paid_at,omitempty"`
	AlreadyPaid   bool    `json:"already_paid"`
}

// CreateACHPaymentRequest starts a bank-debit payment. ClientIP and
// UserAgent are filled by the HTTP layer for the Stripe mandate record.
type CreateACHPaymentRequest struct {
	InvoiceNumber     string `json:"invoice_number"`
	Email             string `json:"email"`
	AccountHolderName string `json:"account_holder_name"`
	RoutingNumber     string `json:"routing_number"`
	AccountNumber     string `json:"account_number"`
	AccountType       string `json:"account_type"`

	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
}

type CreateACHPaymentResponse struct {
	Status          string  `json:"status"`
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          float64 `json:"amount"`
	Fee             float64 `json:"fee"`
	Total           float64 `json:"total"`
}

// Service orchestrates payments against Stripe and the invoice store.
type Service interface {
	CreateCardPayment(ctx context.Context, req CreateCardPaymentRequest) (*CreateCardPaymentResponse, error)
	ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*ConfirmPaymentResponse, error)
	CreateACHPayment(ctx context.Context, req CreateACHPaymentRequest) (*CreateACHPaymentResponse, error)
}

// AccountingNotifier posts settled payments back to the accounting
// system. Failures are reported but must never unwind a settlement.
type AccountingNotifier interface {
	NotifyPayment(ctx context.Context, inv *invoicedomain.Invoice, reference string, paidAt time.Time) error
}
