package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreatePaymentIntentRequestShape(t *testing.T) {
	var gotAuth, gotIdem, gotContentType string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_test","client_secret":"pi_test_secret","status":"requires_payment_method","amount":102930,"currency":"usd"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk_test_x", BaseURL: srv.URL})
	intent, err := c.CreatePaymentIntent(context.Background(), CreateIntentParams{
		AmountCents:    102930,
		Metadata:       map[string]string{"invoice_number": "INV-10001"},
		IdempotencyKey: "invoice:42",
	})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if intent.ID != "pi_test" {
		t.Fatalf("unexpected intent id %q", intent.ID)
	}
	if gotAuth != "Bearer sk_test_x" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotIdem != "invoice:42" {
		t.Fatalf("unexpected idempotency key %q", gotIdem)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if got := gotForm["amount"]; len(got) != 1 || got[0] != "102930" {
		t.Fatalf("unexpected amount field %v", got)
	}
	if got := gotForm["metadata[invoice_number]"]; len(got) != 1 || got[0] != "INV-10001" {
		t.Fatalf("unexpected metadata field %v", got)
	}
	if got := gotForm["payment_method_types[]"]; len(got) != 1 || got[0] != "card" {
		t.Fatalf("unexpected payment method types %v", got)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk_test_x", BaseURL: srv.URL})
	_, err := c.RetrievePaymentIntent(context.Background(), "pi_bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "card_declined" {
		t.Fatalf("unexpected code %q", apiErr.Code)
	}
	if apiErr.Status != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %d", apiErr.Status)
	}
}

func TestUnconfiguredClientRefusesCalls(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.RetrievePaymentIntent(context.Background(), "pi_x")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestACHIntentRequestShape(t *testing.T) {
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_ach","status":"processing","amount":100500,"currency":"usd"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk_test_x", BaseURL: srv.URL})
	intent, err := c.CreateACHPaymentIntent(context.Background(), ACHIntentParams{
		AmountCents:       100500,
		CustomerID:        "cus_1",
		AccountHolderName: "Jordan Hale",
		RoutingNumber:     "110000000",
		AccountNumber:     "000123456789",
		ClientIP:          "203.0.113.9",
		UserAgent:         "test-agent",
	})
	if err != nil {
		t.Fatalf("create ach intent: %v", err)
	}
	if intent.Status != "processing" {
		t.Fatalf("unexpected status %q", intent.Status)
	}
	checks := map[string]string{
		"confirm": "true",
		"payment_method_data[type]":                         "us_bank_account",
		"payment_method_data[us_bank_account][account_type]": "checking",
		"mandate_data[customer_acceptance][type]":            "online",
		"mandate_data[customer_acceptance][online][ip_address]": "203.0.113.9",
	}
	for key, want := range checks {
		if got := gotForm[key]; len(got) != 1 || got[0] != want {
			t.Fatalf("field %q = %v, want %q", key, got, want)
		}
	}
}
