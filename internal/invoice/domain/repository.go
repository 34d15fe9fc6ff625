package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// SyncUpsert carries one external accounting row into the store.
type SyncUpsert struct {
	InvoiceNumber  string
	CustomerName   string
	CustomerEmail  string
	Description    string
	JobNumber      string
	AmountCents    int64
	Status         InvoiceStatus
	ServiceDate    *time.Time
	DueDate        *time.Time
	Source         string
	ComputerEaseID string
}

// UpsertOutcome reports what an UpsertFromSync call did.
type UpsertOutcome int

const (
	UpsertSkipped UpsertOutcome = iota
	UpsertCreated
	UpsertUpdated
)

// ListFilter narrows an admin invoice listing. Cursor is exclusive:
// rows returned have IDs strictly below it, newest first.
type ListFilter struct {
	Status InvoiceStatus
	Cursor snowflake.ID
	Limit  int
}

// Repository persists invoices. MarkPaid is an idempotent compare-and-set:
// calling it on a paid invoice changes nothing and reports applied=false.
type Repository interface {
	Create(ctx context.Context, inv *Invoice, items []InvoiceLineItem) error
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	ListLineItems(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceLineItem, error)
	SetPaymentIntent(ctx context.Context, id snowflake.ID, intentID string, customerID string) error
	MarkProcessingACH(ctx context.Context, id snowflake.ID, intentID string, customerID string) error
	MarkPaid(ctx context.Context, id snowflake.ID, method string, paidAt time.Time) (applied bool, err error)
	UpsertFromSync(ctx context.Context, row SyncUpsert) (UpsertOutcome, error)
	MarkSyncedBack(ctx context.Context, id snowflake.ID, syncedAt time.Time) error
	Stats(ctx context.Context) (*StatsResponse, error)
}
