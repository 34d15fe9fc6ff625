package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql (local/dev) take the gorm schema directly.
			return conn.AutoMigrate(
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceLineItem{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
