// Package stripe is a thin HTTP client for the handful of Stripe API
// calls the payment flow needs. Requests are form-encoded, responses
// decoded into narrow structs; no SDK.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Intent statuses this service cares about.
const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCanceled  = "canceled"
)

// Client calls the Stripe REST API directly.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Config configures the Stripe client. BaseURL exists so tests can point
// the client at a local fake.
type Config struct {
	APIKey  string
	BaseURL string
}

// NewClient builds a Stripe client. A client with an empty API key is
// valid but refuses every call with ErrNotConfigured.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.stripe.com"
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

// Configured reports whether a secret key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// PaymentIntent is the subset of Stripe's payment intent object the
// service reads.
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Customer     string            `json:"customer"`
	Metadata     map[string]string `json:"metadata"`
}

// Customer is the subset of Stripe's customer object the service reads.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CreateIntentParams describes a card payment intent.
type CreateIntentParams struct {
	AmountCents    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// CreatePaymentIntent creates a card payment intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, p CreateIntentParams) (PaymentIntent, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(p.AmountCents, 10))
	values.Set("currency", currencyOrUSD(p.Currency))
	values.Set("automatic_payment_methods[enabled]", "false")
	values.Set("payment_method_types[]", "card")
	setMetadata(values, p.Metadata)

	var intent PaymentIntent
	err := c.do(ctx, http.MethodPost, "/v1/payment_intents", values, p.IdempotencyKey, &intent)
	return intent, err
}

// RetrievePaymentIntent fetches the current state of an intent.
func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (PaymentIntent, error) {
	var intent PaymentIntent
	err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, "", &intent)
	return intent, err
}

// UpdatePaymentIntentAmount changes the amount on a not-yet-settled intent.
func (c *Client) UpdatePaymentIntentAmount(ctx context.Context, intentID string, amountCents int64) (PaymentIntent, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(amountCents, 10))

	var intent PaymentIntent
	err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(intentID), values, "", &intent)
	return intent, err
}

// CreateCustomer creates a Stripe customer for ACH mandates.
func (c *Client) CreateCustomer(ctx context.Context, name, email string) (Customer, error) {
	values := url.Values{}
	values.Set("name", strings.TrimSpace(name))
	values.Set("email", strings.TrimSpace(email))

	var customer Customer
	err := c.do(ctx, http.MethodPost, "/v1/customers", values, "", &customer)
	return customer, err
}

// ACHIntentParams describes a create-and-confirm us_bank_account intent.
type ACHIntentParams struct {
	AmountCents       int64
	Currency          string
	CustomerID        string
	AccountHolderName string
	RoutingNumber     string
	AccountNumber     string
	AccountType       string // checking or savings
	Metadata          map[string]string
	ClientIP          string
	UserAgent         string
	IdempotencyKey    string
}

// CreateACHPaymentIntent creates and immediately confirms an ACH debit
// intent with an online mandate acceptance.
func (c *Client) CreateACHPaymentIntent(ctx context.Context, p ACHIntentParams) (PaymentIntent, error) {
	accountType := strings.TrimSpace(p.AccountType)
	if accountType == "" {
		accountType = "checking"
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(p.AmountCents, 10))
	values.Set("currency", currencyOrUSD(p.Currency))
	values.Set("customer", p.CustomerID)
	values.Set("confirm", "true")
	values.Set("payment_method_types[]", "us_bank_account")
	values.Set("payment_method_data[type]", "us_bank_account")
	values.Set("payment_method_data[billing_details][name]", strings.TrimSpace(p.AccountHolderName))
	values.Set("payment_method_data[us_bank_account][account_holder_type]", "individual")
	values.Set("payment_method_data[us_bank_account][account_type]", accountType)
	values.Set("payment_method_data[us_bank_account][routing_number]", p.RoutingNumber)
	values.Set("payment_method_data[us_bank_account][account_number]", p.AccountNumber)
	values.Set("mandate_data[customer_acceptance][type]", "online")
	values.Set("mandate_data[customer_acceptance][online][ip_address]", p.ClientIP)
	values.Set("mandate_data[customer_acceptance][online][user_agent]", p.UserAgent)
	setMetadata(values, p.Metadata)

	var intent PaymentIntent
	err := c.do(ctx, http.MethodPost, "/v1/payment_intents", values, p.IdempotencyKey, &intent)
	return intent, err
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body := ""
	if values != nil {
		body = values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "stripe_request_failed"}
		}
		message := strings.TrimSpace(apiErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return &APIError{
			Status:  resp.StatusCode,
			Type:    apiErr.Error.Type,
			Code:    apiErr.Error.Code,
			Message: message,
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setMetadata(values url.Values, metadata map[string]string) {
	for key, value := range metadata {
		values.Set(fmt.Sprintf("metadata[%s]", key), value)
	}
}

func currencyOrUSD(currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return "usd"
	}
	return currency
}
