// Package domain contains persistence models for customer invoices.
package domain

import (
	"regexp"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states. paid is terminal:
// no code path may transition an invoice out of it.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid     InvoiceStatus = "unpaid"
	InvoiceStatusProcessing InvoiceStatus = "processing"
	InvoiceStatusPaid       InvoiceStatus = "paid"
	InvoiceStatusOverdue    InvoiceStatus = "overdue"
	InvoiceStatusCancelled  InvoiceStatus = "cancelled"
)

// ValidStatus reports whether s is a known invoice status.
func ValidStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusProcessing, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// Payment methods recorded on an invoice.
const (
	PaymentMethodCard = "card"
	PaymentMethodACH  = "ach"
)

// Invoice record sources.
const (
	SourceManual       = "manual"
	SourceComputerEase = "computerease"
	SourceCSV          = "csv"
)

var invoiceNumberPattern = regexp.MustCompile(`^INV-\d{5,}$`)

// ValidInvoiceNumber reports whether number matches the INV-NNNNN format.
func ValidInvoiceNumber(number string) bool {
	return invoiceNumberPattern.MatchString(number)
}

// Invoice represents a receivable owed by a customer.
type Invoice struct {
	ID                    snowflake.ID      `gorm:"primaryKey"`
	InvoiceNumber         string            `gorm:"type:text;not null;uniqueIndex:ux_invoices_invoice_number"`
	CustomerName          string            `gorm:"type:text;not null;default:''"`
	CustomerEmail         string            `gorm:"type:text;not null"`
	Description           string            `gorm:"type:text;not null;default:''"`
	JobNumber             string            `gorm:"type:text;not null;default:''"`
	AmountCents           int64             `gorm:"not null"`
	Status                InvoiceStatus     `gorm:"type:text;not null;default:'unpaid';index"`
	ServiceDate           *time.Time        `gorm:""`
	DueDate               *time.Time        `gorm:""`
	PaymentMethod         string            `gorm:"type:text;not null;default:''"`
	StripePaymentIntentID string            `gorm:"type:text;not null;default:''"`
	StripeCustomerID      string            `gorm:"type:text;not null;default:''"`
	PaidAt                *time.Time        `gorm:""`
	Source                string            `gorm:"type:text;not null;default:'manual'"`
	ComputerEaseID        string            `gorm:"column:computerease_id;type:text;not null;default:'';index"`
	ComputerEaseSyncedAt  *time.Time        `gorm:"column:computerease_synced_at"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLineItem represents a line on an invoice.
type InvoiceLineItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	InvoiceID   snowflake.ID `gorm:"not null;index"`
	Description string       `gorm:"type:text;not null"`
	Quantity    int64        `gorm:"not null;default:1"`
	AmountCents int64        `gorm:"not null;default:0"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }
