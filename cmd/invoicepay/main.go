package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/summitmech/invoicepay/internal/computerease"
	"github.com/summitmech/invoicepay/internal/config"
	"github.com/summitmech/invoicepay/internal/invoice"
	"github.com/summitmech/invoicepay/internal/migration"
	"github.com/summitmech/invoicepay/internal/observability"
	"github.com/summitmech/invoicepay/internal/payment"
	"github.com/summitmech/invoicepay/internal/providers"
	"github.com/summitmech/invoicepay/internal/ratelimit"
	"github.com/summitmech/invoicepay/internal/server"
	"github.com/summitmech/invoicepay/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		providers.Module,
		invoice.Module,
		payment.Module,
		computerease.Module,
		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
