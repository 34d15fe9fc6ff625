package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/internal/observability/metrics"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
	"github.com/summitmech/invoicepay/internal/payment/fees"
	"github.com/summitmech/invoicepay/internal/payment/stripe"
)

var (
	routingNumberPattern = regexp.MustCompile(`^\d{9}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{4,17}$`)
)

type Params struct {
	fx.In

	Repo       invoicedomain.Repository
	Stripe     *stripe.Client
	Settlement *Settlement
	Metrics    *metrics.Metrics `optional:"true"`
	Log        *zap.Logger
	Cfg        config.Config
}

type Service struct {
	repo       invoicedomain.Repository
	stripe     *stripe.Client
	settlement *Settlement
	metrics    *metrics.Metrics
	log        *zap.Logger
	cfg        config.Config
}

func New(p Params) paymentdomain.Service {
	return &Service{
		repo:       p.Repo,
		stripe:     p.Stripe,
		settlement: p.Settlement,
		metrics:    p.Metrics,
		log:        p.Log.Named("payment"),
		cfg:        p.Cfg,
	}
}

// CreateCardPayment creates a fee-inflated card intent, reusing any
// still-open intent already attached to the invoice so refreshes do not
// litter Stripe with abandoned intents.
func (s *Service) CreateCardPayment(ctx context.Context, req paymentdomain.CreateCardPaymentRequest) (*paymentdomain.CreateCardPaymentResponse, error) {
	if !s.stripe.Configured() {
		return nil, paymentdomain.ErrServiceUnavailable
	}

	inv, err := s.resolveInvoice(ctx, req.InvoiceNumber, req.Email)
	if err != nil {
		return nil, err
	}
	if inv.Status == invoicedomain.InvoiceStatusPaid {
		return nil, invoicedomain.ErrAlreadyPaid
	}

	feeCents := fees.FeeCents(fees.MethodCard, inv.AmountCents)
	totalCents := inv.AmountCents + feeCents

	intent, err := s.createOrReuseIntent(ctx, inv, totalCents, feeCents)
	if err != nil {
		s.metrics.RecordPaymentAttempt(ctx, "card", "error")
		return nil, err
	}

	// Point of no return: once the intent id is on the invoice, the
	// webhook can settle it even if this response never reaches the
	// browser.
	if err := s.repo.SetPaymentIntent(ctx, inv.ID, intent.ID, intent.Customer); err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentAttempt(ctx, "card", "intent_created")
	return &paymentdomain.CreateCardPaymentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PublishableKey:  s.cfg.Stripe.PublishableKey,
		Amount:          centsToDollars(inv.AmountCents),
		Fee:             centsToDollars(feeCents),
		Total:           centsToDollars(totalCents),
	}, nil
}

func (s *Service) createOrReuseIntent(ctx context.Context, inv *invoicedomain.Invoice, totalCents, feeCents int64) (stripe.PaymentIntent, error) {
	metadata := intentMetadata(inv, feeCents, totalCents)

	if inv.StripePaymentIntentID == "" {
		return s.stripe.CreatePaymentIntent(ctx, stripe.CreateIntentParams{
			AmountCents:    totalCents,
			Metadata:       metadata,
			IdempotencyKey: "invoice:" + inv.ID.String(),
		})
	}

	intent, err := s.stripe.RetrievePaymentIntent(ctx, inv.StripePaymentIntentID)
	if err != nil {
		return stripe.PaymentIntent{}, err
	}
	switch intent.Status {
	case stripe.IntentStatusSucceeded:
		// Stripe has the money but the webhook has not landed yet.
		return stripe.PaymentIntent{}, invoicedomain.ErrAlreadyPaid
	case stripe.IntentStatusCanceled:
		return s.stripe.CreatePaymentIntent(ctx, stripe.CreateIntentParams{
			AmountCents: totalCents,
			Metadata:    metadata,
		})
	default:
		if intent.Amount != totalCents {
			return s.stripe.UpdatePaymentIntentAmount(ctx, intent.ID, totalCents)
		}
		return intent, nil
	}
}

// ConfirmPayment settles an invoice after the browser reports success.
// The intent is re-fetched from Stripe; the client's claim is never
// trusted on its own.
func (s *Service) ConfirmPayment(ctx context.Context, req paymentdomain.ConfirmPaymentRequest) (*paymentdomain.ConfirmPaymentResponse, error) {
	intentID := strings.TrimSpace(req.PaymentIntentID)
	if intentID == "" {
		return nil, paymentdomain.ErrMissingIntent
	}
	if !s.stripe.Configured() {
		return nil, paymentdomain.ErrServiceUnavailable
	}

	intent, err := s.stripe.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != stripe.IntentStatusSucceeded {
		s.metrics.RecordPaymentAttempt(ctx, "card", "not_completed")
		return nil, paymentdomain.ErrPaymentNotCompleted
	}

	invoiceNumber := intent.Metadata["invoice_number"]

	if intent.Metadata["demo"] == "true" {
		amountCents, _ := strconv.ParseInt(intent.Metadata["amount_cents"], 10, 64)
		return &paymentdomain.ConfirmPaymentResponse{
			Status:        "paid",
			InvoiceNumber: invoiceNumber,
			Amount:        centsToDollars(amountCents),
			PaidAt:        time.Now().UTC().Format(time.RFC3339),
		}, nil
	}

	inv, err := s.invoiceFromIntentMetadata(ctx, intent.Metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	applied, err := s.settlement.Settle(ctx, inv, invoicedomain.PaymentMethodCard, now, intent.ID)
	if err != nil {
		return nil, err
	}

	paidAt := now
	if !applied && inv.PaidAt != nil {
		paidAt = inv.PaidAt.UTC()
	}

	s.metrics.RecordPaymentAttempt(ctx, "card", "succeeded")
	return &paymentdomain.ConfirmPaymentResponse{
		Status:        "paid",
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        centsToDollars(inv.AmountCents),
		PaidAt:        paidAt.Format(time.RFC3339),
		AlreadyPaid:   !applied,
	}, nil
}

// CreateACHPayment starts a confirmed bank-debit intent. Bank details
// are validated server-side and never persisted.
func (s *Service) CreateACHPayment(ctx context.Context, req paymentdomain.CreateACHPaymentRequest) (*paymentdomain.CreateACHPaymentResponse, error) {
	if !s.stripe.Configured() {
		return nil, paymentdomain.ErrServiceUnavailable
	}

	if err := validateBankDetails(req); err != nil {
		return nil, err
	}

	// The demo invoice never touches the store; it exists so the ACH
	// flow can be exercised end to end against Stripe's test bank.
	if s.isDemoInvoice(req.InvoiceNumber) {
		return s.createDemoACHPayment(ctx, req)
	}

	inv, err := s.resolveInvoice(ctx, req.InvoiceNumber, req.Email)
	if err != nil {
		return nil, err
	}
	if inv.Status == invoicedomain.InvoiceStatusPaid {
		return nil, invoicedomain.ErrAlreadyPaid
	}

	feeCents := fees.FeeCents(fees.MethodACH, inv.AmountCents)
	totalCents := inv.AmountCents + feeCents

	customer, err := s.stripe.CreateCustomer(ctx, req.AccountHolderName, inv.CustomerEmail)
	if err != nil {
		s.metrics.RecordPaymentAttempt(ctx, "ach", "error")
		return nil, err
	}

	intent, err := s.stripe.CreateACHPaymentIntent(ctx, stripe.ACHIntentParams{
		AmountCents:       totalCents,
		CustomerID:        customer.ID,
		AccountHolderName: req.AccountHolderName,
		RoutingNumber:     req.RoutingNumber,
		AccountNumber:     req.AccountNumber,
		AccountType:       req.AccountType,
		Metadata:          intentMetadata(inv, feeCents, totalCents),
		ClientIP:          req.ClientIP,
		UserAgent:         req.UserAgent,
		IdempotencyKey:    "invoice-ach:" + inv.ID.String(),
	})
	if err != nil {
		s.metrics.RecordPaymentAttempt(ctx, "ach", "error")
		return nil, err
	}

	if err := s.repo.MarkProcessingACH(ctx, inv.ID, intent.ID, customer.ID); err != nil {
		return nil, err
	}

	s.settlement.SendACHInitiated(ctx, inv, totalCents)
	s.metrics.RecordPaymentAttempt(ctx, "ach", "initiated")

	return &paymentdomain.CreateACHPaymentResponse{
		Status:          "processing",
		PaymentIntentID: intent.ID,
		Amount:          centsToDollars(inv.AmountCents),
		Fee:             centsToDollars(feeCents),
		Total:           centsToDollars(totalCents),
	}, nil
}

const demoAmountCents = 150000 // $1,500 demo invoice

func (s *Service) isDemoInvoice(invoiceNumber string) bool {
	demo := strings.TrimSpace(s.cfg.DemoInvoiceID)
	return demo != "" && strings.TrimSpace(invoiceNumber) == demo
}

func (s *Service) createDemoACHPayment(ctx context.Context, req paymentdomain.CreateACHPaymentRequest) (*paymentdomain.CreateACHPaymentResponse, error) {
	feeCents := fees.FeeCents(fees.MethodACH, demoAmountCents)
	totalCents := demoAmountCents + feeCents

	customer, err := s.stripe.CreateCustomer(ctx, req.AccountHolderName, req.Email)
	if err != nil {
		return nil, err
	}

	intent, err := s.stripe.CreateACHPaymentIntent(ctx, stripe.ACHIntentParams{
		AmountCents:       totalCents,
		CustomerID:        customer.ID,
		AccountHolderName: req.AccountHolderName,
		RoutingNumber:     req.RoutingNumber,
		AccountNumber:     req.AccountNumber,
		AccountType:       req.AccountType,
		Metadata: map[string]string{
			"demo":           "true",
			"invoice_number": s.cfg.DemoInvoiceID,
		},
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("demo ach payment created", zap.String("intent_id", intent.ID))
	return &paymentdomain.CreateACHPaymentResponse{
		Status:          "processing",
		PaymentIntentID: intent.ID,
		Amount:          centsToDollars(demoAmountCents),
		Fee:             centsToDollars(feeCents),
		Total:           centsToDollars(totalCents),
	}, nil
}

// resolveInvoice applies the same validation and uniform not-found
// behavior as the public lookup.
func (s *Service) resolveInvoice(ctx context.Context, invoiceNumber, emailAddr string) (*invoicedomain.Invoice, error) {
	number := strings.TrimSpace(invoiceNumber)
	emailAddr = strings.TrimSpace(emailAddr)

	if number == "" || emailAddr == "" {
		return nil, invoicedomain.ErrMissingFields
	}
	if !invoicedomain.ValidInvoiceNumber(number) {
		return nil, invoicedomain.ErrInvalidNumber
	}
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return nil, invoicedomain.ErrInvalidEmail
	}

	inv, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(inv.CustomerEmail), emailAddr) {
		return nil, invoicedomain.ErrNotFound
	}
	return inv, nil
}

func (s *Service) invoiceFromIntentMetadata(ctx context.Context, metadata map[string]string) (*invoicedomain.Invoice, error) {
	if raw := strings.TrimSpace(metadata["invoice_id"]); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			inv, err := s.repo.FindByID(ctx, snowflake.ID(id))
			if err == nil {
				return inv, nil
			}
			if !errors.Is(err, invoicedomain.ErrNotFound) {
				return nil, err
			}
		}
	}
	if number := strings.TrimSpace(metadata["invoice_number"]); number != "" {
		return s.repo.FindByNumber(ctx, number)
	}
	return nil, invoicedomain.ErrNotFound
}

func validateBankDetails(req paymentdomain.CreateACHPaymentRequest) error {
	if strings.TrimSpace(req.AccountHolderName) == "" {
		return paymentdomain.ErrInvalidBankDetails
	}
	if !routingNumberPattern.MatchString(req.RoutingNumber) {
		return paymentdomain.ErrInvalidBankDetails
	}
	if !accountNumberPattern.MatchString(req.AccountNumber) {
		return paymentdomain.ErrInvalidBankDetails
	}
	switch strings.TrimSpace(req.AccountType) {
	case "", "checking", "savings":
		return nil
	default:
		return paymentdomain.ErrInvalidBankDetails
	}
}

func intentMetadata(inv *invoicedomain.Invoice, feeCents, totalCents int64) map[string]string {
	return map[string]string{
		"invoice_id":     inv.ID.String(),
		"invoice_number": inv.InvoiceNumber,
		"amount_cents":   strconv.FormatInt(inv.AmountCents, 10),
		"fee_cents":      strconv.FormatInt(feeCents, 10),
		"total_cents":    strconv.FormatInt(totalCents, 10),
	}
}
