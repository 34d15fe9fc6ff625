package email

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/summitmech/invoicepay/internal/config"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig picks the outbound provider: Resend when an API key is
// set, SMTP when a host is set, otherwise a no-op.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	var provider Provider
	switch {
	case cfg.Email.ResendAPIKey != "":
		provider = NewResend(cfg.Email.ResendAPIKey, cfg.Email.From)
	case cfg.Email.SMTPHost != "":
		provider = NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		})
	default:
		log.Warn("no email provider configured, outbound mail disabled")
		provider = &NoOpProvider{}
	}

	if override := strings.TrimSpace(cfg.Email.OverrideTo); override != "" {
		provider = &overrideProvider{inner: provider, to: override}
	}
	return provider
}

// overrideProvider reroutes all mail to a single address. Used in
// staging so real customers never receive test traffic.
type overrideProvider struct {
	inner Provider
	to    string
}

func (p *overrideProvider) Send(ctx context.Context, msg Message) error {
	msg.To = []string{p.to}
	return p.inner.Send(ctx, msg)
}
