package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/internal/observability/metrics"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
	"github.com/summitmech/invoicepay/internal/payment/fees"
	"github.com/summitmech/invoicepay/internal/providers/email"
	"github.com/summitmech/invoicepay/internal/providers/pdf"
)

// SettlementParams declares the settlement dependencies.
type SettlementParams struct {
	fx.In

	Repo     invoicedomain.Repository
	Email    email.Provider
	PDF      pdf.Provider
	Notifier paymentdomain.AccountingNotifier `optional:"true"`
	Metrics  *metrics.Metrics                 `optional:"true"`
	Log      *zap.Logger
	Cfg      config.Config
}

// Settlement flips invoices to paid and runs the follow-up side effects:
// confirmation email with receipt and accounting back-sync. The mark-paid
// write is the only step allowed to fail the settlement; everything after
// it is best-effort.
type Settlement struct {
	repo     invoicedomain.Repository
	email    email.Provider
	pdf      pdf.Provider
	notifier paymentdomain.AccountingNotifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	company  string
}

func NewSettlement(p SettlementParams) *Settlement {
	return &Settlement{
		repo:     p.Repo,
		email:    p.Email,
		pdf:      p.PDF,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		log:      p.Log.Named("settlement"),
		company:  p.Cfg.CompanyName,
	}
}

// Settle marks the invoice paid exactly once. Duplicate calls (second
// webhook delivery, confirm racing a webhook) return applied=false and
// trigger no second email or back-sync.
func (s *Settlement) Settle(ctx context.Context, inv *invoicedomain.Invoice, method string, paidAt time.Time, reference string) (bool, error) {
	applied, err := s.repo.MarkPaid(ctx, inv.ID, method, paidAt)
	if err != nil {
		return false, err
	}
	if !applied {
		s.log.Info("settlement skipped, invoice already paid",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.String("reference", reference),
		)
		return false, nil
	}

	s.sendReceipt(ctx, inv, method, paidAt)
	s.notifyAccounting(ctx, inv, reference, paidAt)
	return true, nil
}

func (s *Settlement) sendReceipt(ctx context.Context, inv *invoicedomain.Invoice, method string, paidAt time.Time) {
	feeCents := fees.FeeCents(method, inv.AmountCents)
	totalCents := inv.AmountCents + feeCents

	items, err := s.repo.ListLineItems(ctx, inv.ID)
	if err != nil {
		s.log.Warn("list line items for receipt", zap.Error(err))
	}

	data := pdf.ReceiptData{
		CompanyName:   s.company,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		DatePaid:      paidAt.UTC().Format("January 2, 2006"),
		PaymentMethod: methodLabel(method),
		Amount:        formatUSD(inv.AmountCents),
		Fee:           formatUSD(feeCents),
		Total:         formatUSD(totalCents),
	}
	for _, item := range items {
		data.Items = append(data.Items, pdf.ReceiptItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			Amount:      formatUSD(item.AmountCents),
		})
	}

	msg := email.Message{
		To:      []string{inv.CustomerEmail},
		Subject: fmt.Sprintf("Payment received for invoice %s", inv.InvoiceNumber),
		HTML:    receiptHTML(s.company, inv.InvoiceNumber, formatUSD(totalCents), data.DatePaid),
	}

	receipt, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		s.log.Warn("generate receipt pdf", zap.Error(err), zap.String("invoice_number", inv.InvoiceNumber))
	} else {
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    fmt.Sprintf("receipt-%s.pdf", inv.InvoiceNumber),
			ContentType: "application/pdf",
			Content:     receipt,
		})
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.log.Warn("send confirmation email", zap.Error(err), zap.String("invoice_number", inv.InvoiceNumber))
		s.metrics.RecordEmailSent(ctx, "receipt", "error")
		return
	}
	s.metrics.RecordEmailSent(ctx, "receipt", "sent")
}

// SendACHInitiated emails the customer that a bank debit is underway.
func (s *Settlement) SendACHInitiated(ctx context.Context, inv *invoicedomain.Invoice, totalCents int64) {
	msg := email.Message{
		To:      []string{inv.CustomerEmail},
		Subject: fmt.Sprintf("Bank payment initiated for invoice %s", inv.InvoiceNumber),
		HTML: fmt.Sprintf(
			"<p>We have started a bank transfer of %s for invoice %s.</p>"+
				"<p>ACH transfers usually settle within 4 business days. "+
				"You will receive a receipt from %s once the payment clears.</p>",
			formatUSD(totalCents), inv.InvoiceNumber, s.company,
		),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.log.Warn("send ach initiated email", zap.Error(err), zap.String("invoice_number", inv.InvoiceNumber))
		s.metrics.RecordEmailSent(ctx, "ach_initiated", "error")
		return
	}
	s.metrics.RecordEmailSent(ctx, "ach_initiated", "sent")
}

func (s *Settlement) notifyAccounting(ctx context.Context, inv *invoicedomain.Invoice, reference string, paidAt time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPayment(ctx, inv, reference, paidAt); err != nil {
		s.log.Warn("accounting back-sync failed",
			zap.Error(err),
			zap.String("invoice_number", inv.InvoiceNumber),
		)
		return
	}
	if err := s.repo.MarkSyncedBack(ctx, inv.ID, time.Now().UTC()); err != nil {
		s.log.Warn("mark invoice synced back", zap.Error(err), zap.String("invoice_number", inv.InvoiceNumber))
	}
}

func receiptHTML(company, invoiceNumber, total, datePaid string) string {
	return fmt.Sprintf(
		"<p>Thank you for your payment to %s.</p>"+
			"<p>Invoice <strong>%s</strong> was paid in full (%s) on %s. "+
			"A PDF receipt is attached for your records.</p>",
		company, invoiceNumber, total, datePaid,
	)
}

func methodLabel(method string) string {
	switch method {
	case invoicedomain.PaymentMethodACH:
		return "Bank transfer (ACH)"
	case invoicedomain.PaymentMethodCard:
		return "Card"
	default:
		return method
	}
}

func formatUSD(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
