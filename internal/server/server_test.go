package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ceclient "github.com/summitmech/invoicepay/internal/computerease/client"
	ceservice "github.com/summitmech/invoicepay/internal/computerease/service"
	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	invoicerepo "github.com/summitmech/invoicepay/internal/invoice/repository"
	invoiceservice "github.com/summitmech/invoicepay/internal/invoice/service"
	paymentservice "github.com/summitmech/invoicepay/internal/payment/service"
	"github.com/summitmech/invoicepay/internal/payment/stripe"
	"github.com/summitmech/invoicepay/internal/payment/webhook"
	"github.com/summitmech/invoicepay/internal/providers/email"
	"github.com/summitmech/invoicepay/internal/providers/pdf"
	"github.com/summitmech/invoicepay/internal/ratelimit"
)

const webhookSecret = "whsec_server_test"

type nullEmail struct{}

func (nullEmail) Send(ctx context.Context, msg email.Message) error { return nil }

type nullPDF struct{}

func (nullPDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) ([]byte, error) {
	return []byte("pdf"), nil
}

var srvSeq int

type harness struct {
	server *Server
	engine *gin.Engine
	repo   invoicedomain.Repository
}

func setupServer(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srvSeq++
	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", srvSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.InvoiceLineItem{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	repo := invoicerepo.Provide(db, node)
	log := zap.NewNop()

	invoiceSvc := invoiceservice.New(invoiceservice.Params{Repo: repo, Log: log})

	stripeClient := stripe.NewClient(stripe.Config{
		APIKey:  cfg.Stripe.SecretKey,
		BaseURL: cfg.Stripe.APIBase,
	})
	settlement := paymentservice.NewSettlement(paymentservice.SettlementParams{
		Repo:  repo,
		Email: nullEmail{},
		PDF:   nullPDF{},
		Log:   log,
		Cfg:   cfg,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		Repo:       repo,
		Stripe:     stripeClient,
		Settlement: settlement,
		Log:        log,
		Cfg:        cfg,
	})
	processor := webhook.New(webhook.Params{
		Repo:       repo,
		Verifier:   stripe.NewVerifier(webhookSecret, stripe.DefaultTolerance),
		Settlement: settlement,
		Log:        log,
	})
	syncSvc, err := ceservice.New(ceservice.Params{
		Repo:   repo,
		Client: ceclient.New(cfg.ComputerEase),
		Log:    log,
		Cfg:    cfg,
	})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware(false))

	server := NewServer(ServerParams{
		Engine:     engine,
		Cfg:        cfg,
		InvoiceSvc: invoiceSvc,
		PaymentSvc: paymentSvc,
		Webhook:    processor,
		SyncSvc:    syncSvc,
		Limiter:    ratelimit.NewMemoryLimiter(),
		Log:        log,
	})
	return &harness{server: server, engine: engine, repo: repo}
}

func (h *harness) postJSON(t *testing.T, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func (h *harness) seed(t *testing.T, number, emailAddr string, cents int64) *invoicedomain.Invoice {
	t.Helper()
	inv := &invoicedomain.Invoice{
		InvoiceNumber: number,
		CustomerName:  "Morgan Ellis",
		CustomerEmail: emailAddr,
		AmountCents:   cents,
		Status:        invoicedomain.InvoiceStatusUnpaid,
	}
	require.NoError(t, h.repo.Create(context.Background(), inv, nil))
	return inv
}

func TestLookupUniform404(t *testing.T) {
	h := setupServer(t, config.Config{SyncAPIKey: "sync-key"})
	h.seed(t, "INV-40001", "morgan@example.com", 120000)

	wrongEmail := h.postJSON(t, "/invoice/lookup", gin.H{
		"invoice_number": "INV-40001", "email": "other@example.com",
	}, nil)
	wrongNumber := h.postJSON(t, "/invoice/lookup", gin.H{
		"invoice_number": "INV-49999", "email": "morgan@example.com",
	}, nil)

	assert.Equal(t, http.StatusNotFound, wrongEmail.Code)
	assert.Equal(t, http.StatusNotFound, wrongNumber.Code)
	// Anti-enumeration: both bodies must be byte-identical.
	assert.Equal(t, wrongEmail.Body.String(), wrongNumber.Body.String())
}

func TestLookupSuccess(t *testing.T) {
	h := setupServer(t, config.Config{})
	h.seed(t, "INV-40002", "morgan@example.com", 120000)

	rec := h.postJSON(t, "/invoice/lookup", gin.H{
		"invoice_number": "INV-40002", "email": "MORGAN@EXAMPLE.COM",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Invoice     invoicedomain.InvoiceView `json:"invoice"`
		AlreadyPaid bool                      `json:"already_paid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INV-40002", body.Invoice.InvoiceNumber)
	assert.Equal(t, 1200.0, body.Invoice.Amount)
	assert.False(t, body.AlreadyPaid)
}

func TestLookupValidationError(t *testing.T) {
	h := setupServer(t, config.Config{})

	rec := h.postJSON(t, "/invoice/lookup", gin.H{
		"invoice_number": "DROP TABLE", "email": "a@b.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestCreatePaymentUnconfiguredStripeReturns503(t *testing.T) {
	h := setupServer(t, config.Config{})
	h.seed(t, "INV-40003", "morgan@example.com", 120000)

	rec := h.postJSON(t, "/invoice/create-payment", gin.H{
		"invoice_number": "INV-40003", "email": "morgan@example.com",
	}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConfirmPaymentMissingIntentReturns400(t *testing.T) {
	h := setupServer(t, config.Config{Stripe: config.StripeConfig{SecretKey: "sk_test"}})

	rec := h.postJSON(t, "/invoice/confirm-payment", gin.H{"payment_intent_id": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateACHPaymentBadBankDetailsBypassingClient(t *testing.T) {
	h := setupServer(t, config.Config{Stripe: config.StripeConfig{SecretKey: "sk_test", APIBase: "http://127.0.0.1:0"}})
	h.seed(t, "INV-40004", "morgan@example.com", 120000)

	rec := h.postJSON(t, "/invoice/create-ach-payment", gin.H{
		"invoice_number":      "INV-40004",
		"email":               "morgan@example.com",
		"account_holder_name": "Morgan Ellis",
		"routing_number":      "12345",
		"account_number":      "000123456789",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestWebhookBadSignatureReturns400(t *testing.T) {
	h := setupServer(t, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/invoice/webhook",
		bytes.NewReader([]byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookValidSignatureReturns200(t *testing.T) {
	h := setupServer(t, config.Config{})

	payload := []byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	req := httptest.NewRequest(http.MethodPost, "/invoice/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

func TestSyncEndpointsRequireAPIKey(t *testing.T) {
	h := setupServer(t, config.Config{SyncAPIKey: "sync-key"})

	missing := h.postJSON(t, "/sync/csv-import", gin.H{"csv_data": ""}, nil)
	wrong := h.postJSON(t, "/sync/csv-import", gin.H{"csv_data": ""}, map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
}

func TestSyncEndpointsClosedWithoutConfiguredKey(t *testing.T) {
	h := setupServer(t, config.Config{})

	rec := h.postJSON(t, "/sync/csv-import", gin.H{"csv_data": ""}, map[string]string{"X-API-Key": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCSVImportThroughHTTP(t *testing.T) {
	h := setupServer(t, config.Config{SyncAPIKey: "sync-key"})

	csvData := "Invoice Number,Customer Name,Customer Email,Amount,Status\n" +
		"INV-40005,HTTP Import,import@example.com,500.00,Open\n" +
		"INV-40006,No Email,,100.00,Open\n"
	rec := h.postJSON(t, "/sync/csv-import", gin.H{"csv_data": csvData},
		map[string]string{"X-API-Key": "sync-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results struct {
			Total   int `json:"total"`
			Created int `json:"created"`
			Skipped int `json:"skipped"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Results.Total)
	assert.Equal(t, 1, body.Results.Created)
	assert.Equal(t, 1, body.Results.Skipped)
}

func TestAdminStatsBearerAuth(t *testing.T) {
	h := setupServer(t, config.Config{AdminPassword: "dashboard-pass"})
	h.seed(t, "INV-40007", "morgan@example.com", 120000)

	unauth := httptest.NewRequest(http.MethodGet, "/admin/invoice-stats", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, unauth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	authed := httptest.NewRequest(http.MethodGet, "/admin/invoice-stats", nil)
	authed.Header.Set("Authorization", "Bearer dashboard-pass")
	rec = httptest.NewRecorder()
	h.engine.ServeHTTP(rec, authed)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats invoicedomain.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Unpaid)
}

func TestAdminStatsOpenWithoutPassword(t *testing.T) {
	h := setupServer(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/admin/invoice-stats", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLookupRateLimitDeniesAfterBurst(t *testing.T) {
	h := setupServer(t, config.Config{})
	h.seed(t, "INV-40008", "morgan@example.com", 120000)

	body := gin.H{"invoice_number": "INV-40008", "email": "morgan@example.com"}
	var lastCode int
	for i := 0; i < lookupBurst+1; i++ {
		rec := h.postJSON(t, "/invoice/lookup", body, nil)
		lastCode = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
