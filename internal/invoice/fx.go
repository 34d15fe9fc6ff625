package invoice

import (
	"go.uber.org/fx"

	"github.com/summitmech/invoicepay/internal/invoice/repository"
	"github.com/summitmech/invoicepay/internal/invoice/service"
)

var Module = fx.Module(
	"invoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
