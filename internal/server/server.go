// Package server wires the HTTP surface: public invoice and payment
// endpoints, the Stripe webhook, sync endpoints, and admin reads.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cedomain "github.com/summitmech/invoicepay/internal/computerease/domain"
	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/internal/observability"
	obslogger "github.com/summitmech/invoicepay/internal/observability/logger"
	obsmetrics "github.com/summitmech/invoicepay/internal/observability/metrics"
	obstracing "github.com/summitmech/invoicepay/internal/observability/tracing"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
	"github.com/summitmech/invoicepay/internal/payment/webhook"
	"github.com/summitmech/invoicepay/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(newEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

// Per-IP limits for the anonymous endpoints. Lookup is generous; intent
// creation is tight enough to make invoice-number enumeration useless.
const (
	lookupRatePerSec  = 0.5
	lookupBurst       = 30
	paymentRatePerSec = 0.2
	paymentBurst      = 5
)

func newEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obsCfg.ServiceName))
	r.Use(ErrorHandlingMiddleware(obsCfg.Debug()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	webhook    *webhook.Processor
	syncSvc    cedomain.Service
	limiter    ratelimit.Limiter
	metrics    *obsmetrics.Metrics
	log        *zap.Logger
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	Cfg        config.Config
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	Webhook    *webhook.Processor
	SyncSvc    cedomain.Service
	Limiter    ratelimit.Limiter
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Log        *zap.Logger
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Engine,
		cfg:        p.Cfg,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		webhook:    p.Webhook,
		syncSvc:    p.SyncSvc,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
		log:        p.Log.Named("server"),
	}

	s.registerInvoiceRoutes()
	s.registerSyncRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) registerInvoiceRoutes() {
	invoice := s.engine.Group("/invoice")

	lookupLimit := ratelimit.Middleware(s.limiter, s.metrics, s.log, "lookup", lookupRatePerSec, lookupBurst)
	paymentLimit := ratelimit.Middleware(s.limiter, s.metrics, s.log, "create_payment", paymentRatePerSec, paymentBurst)

	invoice.POST("/lookup", lookupLimit, s.LookupInvoice)
	invoice.POST("/create-payment", paymentLimit, s.CreateCardPayment)
	invoice.POST("/create-ach-payment", paymentLimit, s.CreateACHPayment)
	invoice.POST("/confirm-payment", s.ConfirmPayment)
	invoice.POST("/webhook", s.StripeWebhook)
}

func (s *Server) registerSyncRoutes() {
	sync := s.engine.Group("/sync")
	sync.Use(s.requireSyncKey())

	sync.POST("/computerease-import", s.ComputerEaseImport)
	sync.POST("/csv-import", s.CSVImport)
	sync.POST("/update-computerease-payment", s.UpdateComputerEasePayment)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.requireAdminPassword())

	admin.GET("/invoice-stats", s.InvoiceStats)
	admin.GET("/invoices", s.ListInvoices)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
