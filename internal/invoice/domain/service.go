package domain

import "context"

// LookupRequest identifies an invoice by number plus the billing email on file.
type LookupRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	Email         string `json:"email"`
}

// LineItemView is the customer-visible shape of a line item.
type LineItemView struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	Amount      float64 `json:"amount"`
}

// InvoiceView is the sanitized, customer-visible shape of an invoice.
// It never exposes internal identifiers or sync linkage.
type InvoiceView struct {
	InvoiceNumber string         `json:"invoice_number"`
	CustomerName  string         `json:"customer_name"`
	Description   string         `json:"description,omitempty"`
	Amount        float64        `json:"amount"`
	Status        InvoiceStatus  `json:"status"`
	ServiceDate   string         `json:"service_date,omitempty"`
	DueDate       string         `json:"due_date,omitempty"`
	PaidAt        string         `json:"paid_at,omitempty"`
	AlreadyPaid   bool           `json:"already_paid"`
	LineItems     []LineItemView `json:"line_items,omitempty"`
}

// StatsResponse summarizes the invoice table for the admin endpoint.
type StatsResponse struct {
	Total          int64 `json:"total"`
	Unpaid         int64 `json:"unpaid"`
	Processing     int64 `json:"processing"`
	Paid           int64 `json:"paid"`
	Overdue        int64 `json:"overdue"`
	SyncedFromCE   int64 `json:"synced_from_computerease"`
	SyncedBackToCE int64 `json:"synced_back_to_computerease"`
}

// AdminInvoiceView is the operator-facing row on the admin listing.
type AdminInvoiceView struct {
	InvoiceNumber  string        `json:"invoice_number"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	Amount         float64       `json:"amount"`
	Status         InvoiceStatus `json:"status"`
	PaymentMethod  string        `json:"payment_method,omitempty"`
	ServiceDate    string        `json:"service_date,omitempty"`
	DueDate        string        `json:"due_date,omitempty"`
	PaidAt         string        `json:"paid_at,omitempty"`
	Source         string        `json:"source"`
	ComputerEaseID string        `json:"computerease_id,omitempty"`
	SyncedBack     bool          `json:"synced_back"`
}

// ListRequest filters and pages the admin invoice listing.
type ListRequest struct {
	Status    string `form:"status"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// ListResponse is one page of the admin listing.
type ListResponse struct {
	Invoices      []AdminInvoiceView `json:"invoices"`
	NextPageToken string             `json:"next_page_token,omitempty"`
	HasMore       bool               `json:"has_more"`
}

// Service exposes customer-facing invoice reads plus admin listings.
type Service interface {
	Lookup(ctx context.Context, req LookupRequest) (*InvoiceView, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Stats(ctx context.Context) (*StatsResponse, error)
}
