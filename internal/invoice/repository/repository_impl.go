package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/pkg/db"
)

type repo struct {
	db   *gorm.DB
	node *snowflake.Node
}

// Provide builds the gorm-backed invoice repository.
func Provide(conn *gorm.DB, node *snowflake.Node) invoicedomain.Repository {
	return &repo{db: conn, node: node}
}

func (r *repo) Create(ctx context.Context, inv *invoicedomain.Invoice, items []invoicedomain.InvoiceLineItem) error {
	if inv.ID == 0 {
		inv.ID = r.node.Generate()
	}
	if inv.Metadata == nil {
		inv.Metadata = datatypes.JSONMap{}
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrDuplicateEntry
			}
			return err
		}
		for i := range items {
			items[i].ID = r.node.Generate()
			items[i].InvoiceID = inv.ID
			items[i].CreatedAt = now
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) FindByNumber(ctx context.Context, invoiceNumber string) (*invoicedomain.Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, invoicedomain.ErrNotFound
	}

	var inv invoicedomain.Invoice
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM invoices WHERE invoice_number = ? LIMIT 1`,
		invoiceNumber,
	).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, invoicedomain.ErrNotFound
	}
	return &inv, nil
}

func (r *repo) List(ctx context.Context, filter invoicedomain.ListFilter) ([]*invoicedomain.Invoice, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}

	query := `SELECT * FROM invoices WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Cursor != 0 {
		query += ` AND id < ?`
		args = append(args, filter.Cursor)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var rows []*invoicedomain.Invoice
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM invoices WHERE id = ? LIMIT 1`,
		id,
	).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, invoicedomain.ErrNotFound
	}
	return &inv, nil
}

func (r *repo) ListLineItems(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLineItem, error) {
	var rows []invoicedomain.InvoiceLineItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM invoice_line_items
		 WHERE invoice_id = ?
		 ORDER BY created_at ASC, id ASC`,
		invoiceID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SetPaymentIntent(ctx context.Context, id snowflake.ID, intentID string, customerID string) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET stripe_payment_intent_id = ?, stripe_customer_id = ?, updated_at = ?
		 WHERE id = ?`,
		intentID,
		customerID,
		time.Now().UTC(),
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.ErrNotFound
	}
	return nil
}

func (r *repo) MarkProcessingACH(ctx context.Context, id snowflake.ID, intentID string, customerID string) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, payment_method = ?, stripe_payment_intent_id = ?, stripe_customer_id = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		invoicedomain.InvoiceStatusProcessing,
		invoicedomain.PaymentMethodACH,
		intentID,
		customerID,
		time.Now().UTC(),
		id,
		invoicedomain.InvoiceStatusPaid,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.ErrAlreadyPaid
	}
	return nil
}

// MarkPaid flips an invoice to paid exactly once. The status guard in the
// WHERE clause makes concurrent or repeated calls safe: only the first
// writer observes applied=true.
func (r *repo) MarkPaid(ctx context.Context, id snowflake.ID, method string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, payment_method = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		invoicedomain.InvoiceStatusPaid,
		method,
		paidAt.UTC(),
		time.Now().UTC(),
		id,
		invoicedomain.InvoiceStatusPaid,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpsertFromSync(ctx context.Context, row invoicedomain.SyncUpsert) (invoicedomain.UpsertOutcome, error) {
	outcome := invoicedomain.UpsertSkipped

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing invoicedomain.Invoice
		if err := tx.Raw(
			`SELECT * FROM invoices WHERE invoice_number = ? LIMIT 1`,
			row.InvoiceNumber,
		).Scan(&existing).Error; err != nil {
			return err
		}

		now := time.Now().UTC()

		if existing.ID == 0 {
			inv := invoicedomain.Invoice{
				ID:             r.node.Generate(),
				InvoiceNumber:  row.InvoiceNumber,
				CustomerName:   row.CustomerName,
				CustomerEmail:  row.CustomerEmail,
				Description:    row.Description,
				JobNumber:      row.JobNumber,
				AmountCents:    row.AmountCents,
				Status:         row.Status,
				ServiceDate:    row.ServiceDate,
				DueDate:        row.DueDate,
				Source:         row.Source,
				ComputerEaseID: row.ComputerEaseID,
				Metadata:       datatypes.JSONMap{},
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.Create(&inv).Error; err != nil {
				return err
			}
			outcome = invoicedomain.UpsertCreated
			return nil
		}

		// Paid invoices are immutable to sync.
		if existing.Status == invoicedomain.InvoiceStatusPaid {
			outcome = invoicedomain.UpsertSkipped
			return nil
		}

		res := tx.Exec(
			`UPDATE invoices
			 SET customer_name = ?, customer_email = ?, description = ?, job_number = ?,
			     amount_cents = ?, status = ?, service_date = ?, due_date = ?, computerease_id = ?, updated_at = ?
			 WHERE id = ? AND status <> ?`,
			row.CustomerName,
			row.CustomerEmail,
			row.Description,
			row.JobNumber,
			row.AmountCents,
			row.Status,
			row.ServiceDate,
			row.DueDate,
			row.ComputerEaseID,
			now,
			existing.ID,
			invoicedomain.InvoiceStatusPaid,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			outcome = invoicedomain.UpsertUpdated
		}
		return nil
	})
	if err != nil {
		return invoicedomain.UpsertSkipped, err
	}
	return outcome, nil
}

func (r *repo) MarkSyncedBack(ctx context.Context, id snowflake.ID, syncedAt time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE invoices SET computerease_synced_at = ?, updated_at = ? WHERE id = ?`,
		syncedAt.UTC(),
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) Stats(ctx context.Context) (*invoicedomain.StatsResponse, error) {
	var out invoicedomain.StatsResponse
	err := r.db.WithContext(ctx).Raw(
		`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN 1 ELSE 0 END), 0) AS unpaid,
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0) AS processing,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0) AS paid,
			COALESCE(SUM(CASE WHEN status = 'overdue' THEN 1 ELSE 0 END), 0) AS overdue,
			COALESCE(SUM(CASE WHEN source = 'computerease' THEN 1 ELSE 0 END), 0) AS synced_from_ce,
			COALESCE(SUM(CASE WHEN computerease_synced_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS synced_back_to_ce
		 FROM invoices`,
	).Row().Scan(
		&out.Total,
		&out.Unpaid,
		&out.Processing,
		&out.Paid,
		&out.Overdue,
		&out.SyncedFromCE,
		&out.SyncedBackToCE,
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &invoicedomain.StatsResponse{}, nil
		}
		return nil, err
	}
	return &out, nil
}
