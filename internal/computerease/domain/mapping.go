package domain

import (
	"fmt"
	"strings"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
)

// Field names one slot of the invoice shape that an external column can
// feed. Import mapping is table-driven: a column either appears in
// fieldAliases or it is ignored, never guessed.
type Field string

const (
	FieldExternalID    Field = "external_id"
	FieldInvoiceNumber Field = "invoice_number"
	FieldCustomerName  Field = "customer_name"
	FieldCustomerEmail Field = "customer_email"
	FieldDescription   Field = "description"
	FieldJobNumber     Field = "job_number"
	FieldAmount        Field = "amount"
	FieldStatus        Field = "status"
	FieldServiceDate   Field = "service_date"
	FieldDueDate       Field = "due_date"
)

// fieldAliases maps every ComputerEase column and API field name we have
// seen in exports, lower-cased, onto its invoice field. CSV headers and
// REST keys go through the same table.
var fieldAliases = map[string]Field{
	"id":        FieldExternalID,
	"record_id": FieldExternalID,
	"ce_id":     FieldExternalID,

	"invoice number": FieldInvoiceNumber,
	"invoice_number": FieldInvoiceNumber,
	"invoice_no":     FieldInvoiceNumber,
	"invoiceno":      FieldInvoiceNumber,

	"customer name": FieldCustomerName,
	"customer_name": FieldCustomerName,
	"customer":      FieldCustomerName,

	"customer email": FieldCustomerEmail,
	"customer_email": FieldCustomerEmail,
	"email":          FieldCustomerEmail,
	"email_address":  FieldCustomerEmail,

	"description":      FieldDescription,
	"work description": FieldDescription,
	"work_description": FieldDescription,

	"job number": FieldJobNumber,
	"job_number": FieldJobNumber,
	"job_no":     FieldJobNumber,

	"amount":      FieldAmount,
	"amount_due":  FieldAmount,
	"balance due": FieldAmount,
	"balance_due": FieldAmount,
	"total":       FieldAmount,

	"status":         FieldStatus,
	"invoice_status": FieldStatus,

	"service date":    FieldServiceDate,
	"service_date":    FieldServiceDate,
	"date of service": FieldServiceDate,
	"date_of_service": FieldServiceDate,

	"due date": FieldDueDate,
	"due_date": FieldDueDate,
	"date_due": FieldDueDate,
}

// statusMapping translates ComputerEase status codes onto invoice
// statuses. Codes missing from the table default to unpaid and are
// reported in the batch result so an operator can extend the table.
var statusMapping = map[string]invoicedomain.InvoiceStatus{
	"open":        invoicedomain.InvoiceStatusUnpaid,
	"unpaid":      invoicedomain.InvoiceStatusUnpaid,
	"outstanding": invoicedomain.InvoiceStatusUnpaid,
	"sent":        invoicedomain.InvoiceStatusUnpaid,
	"billed":      invoicedomain.InvoiceStatusUnpaid,

	"pending":    invoicedomain.InvoiceStatusProcessing,
	"processing": invoicedomain.InvoiceStatusProcessing,

	"paid":         invoicedomain.InvoiceStatusPaid,
	"paid in full": invoicedomain.InvoiceStatusPaid,
	"closed":       invoicedomain.InvoiceStatusPaid,

	"overdue":  invoicedomain.InvoiceStatusOverdue,
	"past due": invoicedomain.InvoiceStatusOverdue,
	"past_due": invoicedomain.InvoiceStatusOverdue,
	"late":     invoicedomain.InvoiceStatusOverdue,

	"cancelled":   invoicedomain.InvoiceStatusCancelled,
	"canceled":    invoicedomain.InvoiceStatusCancelled,
	"void":        invoicedomain.InvoiceStatusCancelled,
	"written off": invoicedomain.InvoiceStatusCancelled,
	"written_off": invoicedomain.InvoiceStatusCancelled,
}

// MapField resolves an external column name. The boolean is false for
// columns the import does not recognize.
func MapField(name string) (Field, bool) {
	field, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	return field, ok
}

// MapStatus resolves an external status code. Unknown codes map to
// unpaid with defaulted=true so the caller can flag the row.
func MapStatus(raw string) (status invoicedomain.InvoiceStatus, defaulted bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return invoicedomain.InvoiceStatusUnpaid, true
	}
	if mapped, ok := statusMapping[key]; ok {
		return mapped, false
	}
	return invoicedomain.InvoiceStatusUnpaid, true
}

// ValidateMappings sanity-checks the tables at startup so a bad edit
// fails the process instead of silently corrupting imports.
func ValidateMappings() error {
	required := []Field{FieldInvoiceNumber, FieldCustomerEmail, FieldAmount, FieldStatus}
	covered := map[Field]bool{}
	for _, field := range fieldAliases {
		covered[field] = true
	}
	for _, field := range required {
		if !covered[field] {
			return fmt.Errorf("computerease field mapping has no alias for %q", field)
		}
	}
	for code, status := range statusMapping {
		if !invoicedomain.ValidStatus(status) {
			return fmt.Errorf("computerease status mapping %q targets unknown status %q", code, status)
		}
	}
	return nil
}
