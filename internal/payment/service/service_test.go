package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	invoicerepo "github.com/summitmech/invoicepay/internal/invoice/repository"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
	"github.com/summitmech/invoicepay/internal/payment/stripe"
	"github.com/summitmech/invoicepay/internal/providers/email"
	"github.com/summitmech/invoicepay/internal/providers/pdf"
)

// fakeStripe is an in-memory Stripe API good enough for the intent
// lifecycle the orchestrator drives.
type fakeStripe struct {
	mu       sync.Mutex
	seq      int
	intents  map[string]map[string]any
	creates  int
	updates  int
	statuses map[string]string
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		intents:  map[string]map[string]any{},
		statuses: map[string]string{},
	}
}

func (f *fakeStripe) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "cus_test", "email": r.PostFormValue("email")})
	})
	mux.HandleFunc("/v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()
		f.seq++
		f.creates++
		id := fmt.Sprintf("pi_%d", f.seq)
		amount, _ := strconv.ParseInt(r.PostFormValue("amount"), 10, 64)
		status := "requires_payment_method"
		if r.PostFormValue("confirm") == "true" {
			status = "processing"
		}
		intent := map[string]any{
			"id":            id,
			"client_secret": id + "_secret",
			"status":        status,
			"amount":        amount,
			"currency":      "usd",
			"customer":      r.PostFormValue("customer"),
			"metadata":      formMetadata(r),
		}
		f.intents[id] = intent
		writeJSON(w, intent)
	})
	mux.HandleFunc("/v1/payment_intents/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/")
		f.mu.Lock()
		defer f.mu.Unlock()
		intent, ok := f.intents[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"error": map[string]any{"message": "No such payment_intent"}})
			return
		}
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			if raw := r.PostFormValue("amount"); raw != "" {
				amount, _ := strconv.ParseInt(raw, 10, 64)
				intent["amount"] = amount
				f.updates++
			}
		}
		if status, ok := f.statuses[id]; ok {
			intent["status"] = status
		}
		writeJSON(w, intent)
	})
	return mux
}

func (f *fakeStripe) setStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

func formMetadata(r *http.Request) map[string]string {
	metadata := map[string]string{}
	for key, values := range r.PostForm {
		if strings.HasPrefix(key, "metadata[") && strings.HasSuffix(key, "]") && len(values) > 0 {
			metadata[key[len("metadata["):len(key)-1]] = values[0]
		}
	}
	return metadata
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []email.Message
}

func (f *fakeEmail) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePDF struct{}

func (fakePDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) ([]byte, error) {
	return []byte("%PDF-1.4 fake"), nil
}

var svcSeq int

type fixture struct {
	repo    invoicedomain.Repository
	svc     paymentdomain.Service
	stripe  *fakeStripe
	emails  *fakeEmail
	settled *Settlement
}

func setupFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	svcSeq++
	dsn := fmt.Sprintf("file:payment_svc_%d?mode=memory&cache=shared", svcSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.InvoiceLineItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := invoicerepo.Provide(db, node)

	fake := newFakeStripe()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := config.Config{
		CompanyName:   "Summit Mechanical & Plumbing",
		DemoInvoiceID: "demo-invoice-001",
		Stripe: config.StripeConfig{
			SecretKey:      apiKey,
			PublishableKey: "pk_test_x",
			APIBase:        srv.URL,
		},
	}

	client := stripe.NewClient(stripe.Config{APIKey: apiKey, BaseURL: srv.URL})
	emails := &fakeEmail{}
	settlement := NewSettlement(SettlementParams{
		Repo:  repo,
		Email: emails,
		PDF:   fakePDF{},
		Log:   zap.NewNop(),
		Cfg:   cfg,
	})
	svc := New(Params{
		Repo:       repo,
		Stripe:     client,
		Settlement: settlement,
		Log:        zap.NewNop(),
		Cfg:        cfg,
	})

	return &fixture{repo: repo, svc: svc, stripe: fake, emails: emails, settled: settlement}
}

func seed(t *testing.T, repo invoicedomain.Repository, number, emailAddr string, cents int64) *invoicedomain.Invoice {
	t.Helper()
	inv := &invoicedomain.Invoice{
		InvoiceNumber: number,
		CustomerName:  "Jordan Hale",
		CustomerEmail: emailAddr,
		AmountCents:   cents,
		Status:        invoicedomain.InvoiceStatusUnpaid,
	}
	require.NoError(t, repo.Create(context.Background(), inv, nil))
	return inv
}

func TestCreateCardPaymentFeeMath(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10001", "jordan@example.com", 100000)

	resp, err := f.svc.CreateCardPayment(context.Background(), paymentdomain.CreateCardPaymentRequest{
		InvoiceNumber: "INV-10001",
		Email:         "jordan@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, resp.Amount)
	assert.Equal(t, 29.30, resp.Fee)
	assert.Equal(t, 1029.30, resp.Total)
	assert.Equal(t, "pk_test_x", resp.PublishableKey)
	assert.NotEmpty(t, resp.ClientSecret)

	inv, err := f.repo.FindByNumber(context.Background(), "INV-10001")
	require.NoError(t, err)
	assert.NotEmpty(t, inv.StripePaymentIntentID)
}

func TestCreateCardPaymentReusesOpenIntent(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10002", "jordan@example.com", 50000)

	req := paymentdomain.CreateCardPaymentRequest{InvoiceNumber: "INV-10002", Email: "jordan@example.com"}
	first, err := f.svc.CreateCardPayment(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.CreateCardPayment(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.Equal(t, 1, f.stripe.creates)
}

func TestCreateCardPaymentRecreatesCanceledIntent(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10003", "jordan@example.com", 50000)

	req := paymentdomain.CreateCardPaymentRequest{InvoiceNumber: "INV-10003", Email: "jordan@example.com"}
	first, err := f.svc.CreateCardPayment(context.Background(), req)
	require.NoError(t, err)

	inv, err := f.repo.FindByNumber(context.Background(), "INV-10003")
	require.NoError(t, err)
	f.stripe.setStatus(inv.StripePaymentIntentID, stripe.IntentStatusCanceled)

	second, err := f.svc.CreateCardPayment(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ClientSecret, second.ClientSecret)
	assert.Equal(t, 2, f.stripe.creates)
}

func TestCreateCardPaymentWrongEmailUniformNotFound(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10004", "owner@example.com", 50000)

	_, err := f.svc.CreateCardPayment(context.Background(), paymentdomain.CreateCardPaymentRequest{
		InvoiceNumber: "INV-10004",
		Email:         "intruder@example.com",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = f.svc.CreateCardPayment(context.Background(), paymentdomain.CreateCardPaymentRequest{
		InvoiceNumber: "INV-99999",
		Email:         "owner@example.com",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestCreateCardPaymentUnconfiguredStripe(t *testing.T) {
	f := setupFixture(t, "")
	seed(t, f.repo, "INV-10005", "jordan@example.com", 50000)

	_, err := f.svc.CreateCardPayment(context.Background(), paymentdomain.CreateCardPaymentRequest{
		InvoiceNumber: "INV-10005",
		Email:         "jordan@example.com",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrServiceUnavailable)
}

func TestConfirmPaymentSettlesOnce(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10006", "jordan@example.com", 100000)

	created, err := f.svc.CreateCardPayment(context.Background(), paymentdomain.CreateCardPaymentRequest{
		InvoiceNumber: "INV-10006",
		Email:         "jordan@example.com",
	})
	require.NoError(t, err)

	inv, err := f.repo.FindByNumber(context.Background(), "INV-10006")
	require.NoError(t, err)
	require.Equal(t, inv.StripePaymentIntentID, created.PaymentIntentID)
	f.stripe.setStatus(inv.StripePaymentIntentID, stripe.IntentStatusSucceeded)

	resp, err := f.svc.ConfirmPayment(context.Background(), paymentdomain.ConfirmPaymentRequest{
		PaymentIntentID: created.PaymentIntentID,
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.Status)
	assert.False(t, resp.AlreadyPaid)
	assert.Equal(t, 1000.0, resp.Amount)
	_, parseErr := time.Parse(time.RFC3339, resp.PaidAt)
	assert.NoError(t, parseErr)
	assert.Equal(t, 1, f.emails.count())

	// Second confirmation is a safe no-op: no status change, no email.
	resp, err = f.svc.ConfirmPayment(context.Background(), paymentdomain.ConfirmPaymentRequest{
		PaymentIntentID: inv.StripePaymentIntentID,
	})
	require.NoError(t, err)
	assert.True(t, resp.AlreadyPaid)
	assert.Equal(t, 1, f.emails.count())

	got, err := f.repo.FindByNumber(context.Background(), "INV-10006")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, got.Status)
	assert.Equal(t, invoicedomain.PaymentMethodCard, got.PaymentMethod)
}

func TestConfirmPaymentRejectsIncompleteIntent(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10007", "jordan@example.com", 100000)

	_, err := f.svc.CreateCardPayment(context.Background(), paymentdomain.CreateCardPaymentRequest{
		InvoiceNumber: "INV-10007",
		Email:         "jordan@example.com",
	})
	require.NoError(t, err)

	inv, err := f.repo.FindByNumber(context.Background(), "INV-10007")
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(context.Background(), paymentdomain.ConfirmPaymentRequest{
		PaymentIntentID: inv.StripePaymentIntentID,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotCompleted)

	got, err := f.repo.FindByNumber(context.Background(), "INV-10007")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, got.Status)
	assert.Equal(t, 0, f.emails.count())
}

func TestCreateACHPaymentFeeCap(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10008", "jordan@example.com", 100000)

	resp, err := f.svc.CreateACHPayment(context.Background(), paymentdomain.CreateACHPaymentRequest{
		InvoiceNumber:     "INV-10008",
		Email:             "jordan@example.com",
		AccountHolderName: "Jordan Hale",
		RoutingNumber:     "110000000",
		AccountNumber:     "000123456789",
		ClientIP:          "203.0.113.9",
		UserAgent:         "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, 5.0, resp.Fee)
	assert.Equal(t, 1005.0, resp.Total)
	assert.Equal(t, 1, f.emails.count())

	inv, err := f.repo.FindByNumber(context.Background(), "INV-10008")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusProcessing, inv.Status)
	assert.Equal(t, invoicedomain.PaymentMethodACH, inv.PaymentMethod)
	assert.NotEmpty(t, inv.StripePaymentIntentID)
}

func TestCreateACHPaymentValidatesBankDetails(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	seed(t, f.repo, "INV-10009", "jordan@example.com", 100000)

	base := paymentdomain.CreateACHPaymentRequest{
		InvoiceNumber:     "INV-10009",
		Email:             "jordan@example.com",
		AccountHolderName: "Jordan Hale",
		RoutingNumber:     "110000000",
		AccountNumber:     "000123456789",
	}

	cases := []struct {
		name   string
		mutate func(*paymentdomain.CreateACHPaymentRequest)
	}{
		{"short routing", func(r *paymentdomain.CreateACHPaymentRequest) { r.RoutingNumber = "12345678" }},
		{"alpha routing", func(r *paymentdomain.CreateACHPaymentRequest) { r.RoutingNumber = "11000000a" }},
		{"short account", func(r *paymentdomain.CreateACHPaymentRequest) { r.AccountNumber = "123" }},
		{"long account", func(r *paymentdomain.CreateACHPaymentRequest) { r.AccountNumber = strings.Repeat("1", 18) }},
		{"missing holder", func(r *paymentdomain.CreateACHPaymentRequest) { r.AccountHolderName = " " }},
		{"bad account type", func(r *paymentdomain.CreateACHPaymentRequest) { r.AccountType = "money-market" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := f.svc.CreateACHPayment(context.Background(), req)
			assert.ErrorIs(t, err, paymentdomain.ErrInvalidBankDetails)
		})
	}
}

func TestCreateACHPaymentDemoBypassesStore(t *testing.T) {
	f := setupFixture(t, "sk_test_x")

	resp, err := f.svc.CreateACHPayment(context.Background(), paymentdomain.CreateACHPaymentRequest{
		InvoiceNumber:     "demo-invoice-001",
		Email:             "demo@example.com",
		AccountHolderName: "Demo User",
		RoutingNumber:     "110000000",
		AccountNumber:     "000123456789",
	})
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, 1500.0, resp.Amount)

	// Nothing was written: the demo invoice does not exist in the store.
	stats, err := f.repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}

func TestCreateACHPaymentRejectsPaidInvoice(t *testing.T) {
	f := setupFixture(t, "sk_test_x")
	inv := seed(t, f.repo, "INV-10010", "jordan@example.com", 100000)
	_, err := f.repo.MarkPaid(context.Background(), inv.ID, invoicedomain.PaymentMethodCard, time.Now())
	require.NoError(t, err)

	_, err = f.svc.CreateACHPayment(context.Background(), paymentdomain.CreateACHPaymentRequest{
		InvoiceNumber:     "INV-10010",
		Email:             "jordan@example.com",
		AccountHolderName: "Jordan Hale",
		RoutingNumber:     "110000000",
		AccountNumber:     "000123456789",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyPaid)
}
