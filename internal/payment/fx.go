package payment

import (
	"go.uber.org/fx"

	"github.com/summitmech/invoicepay/internal/config"
	"github.com/summitmech/invoicepay/internal/payment/service"
	"github.com/summitmech/invoicepay/internal/payment/stripe"
	"github.com/summitmech/invoicepay/internal/payment/webhook"
)

var Module = fx.Module(
	"payment",
	fx.Provide(func(cfg config.Config) *stripe.Client {
		return stripe.NewClient(stripe.Config{
			APIKey:  cfg.Stripe.SecretKey,
			BaseURL: cfg.Stripe.APIBase,
		})
	}),
	fx.Provide(func(cfg config.Config) *stripe.Verifier {
		return stripe.NewVerifier(cfg.Stripe.WebhookSecret, stripe.DefaultTolerance)
	}),
	fx.Provide(service.NewSettlement),
	fx.Provide(service.New),
	fx.Provide(webhook.New),
)
