// Package client talks to the ComputerEase REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/summitmech/invoicepay/internal/computerease/domain"
	"github.com/summitmech/invoicepay/internal/config"
)

const defaultBatchSize = 100

// Client is a thin HTTP client for the ComputerEase cloud API. Requests
// authenticate with a static X-API-Key plus the company code.
type Client struct {
	baseURL     string
	apiKey      string
	companyCode string
	batchSize   int
	http        *http.Client
}

func New(cfg config.ComputerEaseConfig) *Client {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		companyCode: cfg.CompanyCode,
		batchSize:   batch,
		http:        &http.Client{Timeout: 20 * time.Second},
	}
}

// Configured reports whether REST calls can be made at all.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// FetchInvoices pulls one batch of open invoices. Rows come back as raw
// key/value maps; the service applies the field mapping table.
func (c *Client) FetchInvoices(ctx context.Context) ([]map[string]any, error) {
	if !c.Configured() {
		return nil, domain.ErrNotConfigured
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.batchSize))
	if c.companyCode != "" {
		query.Set("company", c.companyCode)
	}

	var payload struct {
		Invoices []map[string]any `json:"invoices"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/invoices?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Invoices, nil
}

// PaymentNotice is the payment record pushed back after settlement.
type PaymentNotice struct {
	ComputerEaseID string    `json:"-"`
	InvoiceNumber  string    `json:"invoice_number"`
	Reference      string    `json:"reference"`
	AmountCents    int64     `json:"amount_cents"`
	Method         string    `json:"method"`
	PaidAt         time.Time `json:"paid_at"`
}

// PostPayment records a settled payment against the CE invoice.
func (c *Client) PostPayment(ctx context.Context, notice PaymentNotice) error {
	if !c.Configured() {
		return domain.ErrNotConfigured
	}
	path := "/api/invoices/" + url.PathEscape(notice.ComputerEaseID) + "/payments"
	return c.do(ctx, http.MethodPost, path, notice, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if c.companyCode != "" {
		req.Header.Set("X-Company-Code", c.companyCode)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("computerease %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
