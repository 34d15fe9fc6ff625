// Package webhook processes verified Stripe event deliveries.
package webhook

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/internal/observability/metrics"
	paymentservice "github.com/summitmech/invoicepay/internal/payment/service"
	"github.com/summitmech/invoicepay/internal/payment/stripe"
)

type Params struct {
	fx.In

	Repo       invoicedomain.Repository
	Verifier   *stripe.Verifier
	Settlement *paymentservice.Settlement
	Metrics    *metrics.Metrics `optional:"true"`
	Log        *zap.Logger
}

// Processor authenticates and applies webhook deliveries. Processing is
// idempotent: Stripe retries deliveries, and the settlement layer
// guarantees a duplicate changes nothing.
type Processor struct {
	repo       invoicedomain.Repository
	verifier   *stripe.Verifier
	settlement *paymentservice.Settlement
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func New(p Params) *Processor {
	return &Processor{
		repo:       p.Repo,
		verifier:   p.Verifier,
		settlement: p.Settlement,
		metrics:    p.Metrics,
		log:        p.Log.Named("webhook"),
	}
}

// Process verifies the signature and applies the event. A returned error
// means the delivery failed authentication or decoding and the caller
// should respond 400. Once a delivery is authenticated, downstream
// failures are logged and swallowed so Stripe stops retrying.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	if err := p.verifier.Verify(payload, sigHeader); err != nil {
		p.metrics.RecordPaymentEvent(ctx, "stripe", "unknown", "rejected")
		return err
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		if errors.Is(err, stripe.ErrEventIgnored) {
			return nil
		}
		return err
	}

	switch event.Type {
	case stripe.EventPaymentSucceeded:
		p.handleSucceeded(ctx, event)
	case stripe.EventPaymentFailed:
		p.handleFailed(ctx, event)
	}
	return nil
}

func (p *Processor) handleSucceeded(ctx context.Context, event *stripe.Event) {
	if event.InvoiceID == 0 {
		// Demo payments and foreign intents carry no invoice linkage.
		p.log.Info("webhook with no invoice linkage ignored",
			zap.String("event_id", event.ID),
			zap.String("intent_id", event.IntentID),
		)
		p.metrics.RecordPaymentEvent(ctx, "stripe", event.Type, "unlinked")
		return
	}

	inv, err := p.repo.FindByID(ctx, event.InvoiceID)
	if err != nil {
		p.log.Error("webhook invoice load failed",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.Int64("invoice_id", int64(event.InvoiceID)),
		)
		p.metrics.RecordPaymentEvent(ctx, "stripe", event.Type, "error")
		return
	}

	method := inv.PaymentMethod
	if method == "" {
		method = invoicedomain.PaymentMethodCard
	}

	applied, err := p.settlement.Settle(ctx, inv, method, event.OccurredAt, event.IntentID)
	if err != nil {
		p.log.Error("webhook settlement failed",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("invoice_number", inv.InvoiceNumber),
		)
		p.metrics.RecordPaymentEvent(ctx, "stripe", event.Type, "error")
		return
	}
	if !applied {
		p.metrics.RecordPaymentEvent(ctx, "stripe", event.Type, "duplicate")
		return
	}
	p.metrics.RecordPaymentEvent(ctx, "stripe", event.Type, "applied")
}

// handleFailed records the failure for operators. The invoice stays in
// its current status so the customer can simply retry.
func (p *Processor) handleFailed(ctx context.Context, event *stripe.Event) {
	p.log.Warn("payment failed",
		zap.String("event_id", event.ID),
		zap.String("intent_id", event.IntentID),
		zap.String("invoice_number", event.InvoiceNumber),
		zap.String("reason", event.FailureReason),
	)
	p.metrics.RecordPaymentEvent(ctx, "stripe", event.Type, "recorded")
}
