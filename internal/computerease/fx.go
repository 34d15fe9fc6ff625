package computerease

import (
	"go.uber.org/fx"

	"github.com/summitmech/invoicepay/internal/computerease/client"
	"github.com/summitmech/invoicepay/internal/computerease/domain"
	"github.com/summitmech/invoicepay/internal/computerease/service"
	"github.com/summitmech/invoicepay/internal/config"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
)

var Module = fx.Module(
	"computerease",
	fx.Provide(func(cfg config.Config) *client.Client {
		return client.New(cfg.ComputerEase)
	}),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Provide(func(s *service.Service) paymentdomain.AccountingNotifier { return s }),
)
