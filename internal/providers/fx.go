package providers

import (
	"go.uber.org/fx"

	"github.com/summitmech/invoicepay/internal/config"
	"github.com/summitmech/invoicepay/internal/providers/email"
	"github.com/summitmech/invoicepay/internal/providers/pdf"
)

var Module = fx.Module("providers",
	email.Module,
	fx.Provide(func(cfg config.Config) pdf.Provider {
		return pdf.New(cfg.CompanyName)
	}),
)
