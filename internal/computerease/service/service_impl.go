// Package service runs ComputerEase imports and payment back-sync.
package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/summitmech/invoicepay/internal/computerease/client"
	"github.com/summitmech/invoicepay/internal/computerease/domain"
	"github.com/summitmech/invoicepay/internal/config"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/internal/observability/metrics"
)

type Params struct {
	fx.In

	Repo    invoicedomain.Repository
	Client  *client.Client
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
	Cfg     config.Config
}

type Service struct {
	repo        invoicedomain.Repository
	client      *client.Client
	metrics     *metrics.Metrics
	log         *zap.Logger
	syncEnabled bool
}

// New validates the mapping tables before anything imports through them.
func New(p Params) (*Service, error) {
	if err := domain.ValidateMappings(); err != nil {
		return nil, err
	}
	return &Service{
		repo:        p.Repo,
		client:      p.Client,
		metrics:     p.Metrics,
		log:         p.Log.Named("computerease"),
		syncEnabled: p.Cfg.ComputerEase.SyncEnabled,
	}, nil
}

var _ domain.Service = (*Service)(nil)

// Import pulls one batch from the ComputerEase API and upserts it.
func (s *Service) Import(ctx context.Context) (*domain.SyncResult, error) {
	rows, err := s.client.FetchInvoices(ctx)
	if err != nil {
		return nil, err
	}

	result := newResult()
	for index, raw := range rows {
		fields := normalizeRow(raw)
		s.importRow(ctx, result, fields, invoicedomain.SourceComputerEase, index+1)
	}
	s.logBatch("rest import", result)
	return result, nil
}

// ImportCSV ingests a client-supplied ComputerEase CSV export. The
// header row picks columns through the same field mapping the REST
// import uses; unknown columns are ignored.
func (s *Service) ImportCSV(ctx context.Context, csvData string) (*domain.SyncResult, error) {
	reader := csv.NewReader(strings.NewReader(csvData))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrEmptyCSV
	}

	header := make([]domain.Field, len(records[0]))
	known := 0
	for i, column := range records[0] {
		if field, ok := domain.MapField(column); ok {
			header[i] = field
			known++
		}
	}
	if known == 0 {
		return nil, domain.ErrEmptyCSV
	}

	result := newResult()
	for rowNum, record := range records[1:] {
		fields := map[domain.Field]string{}
		for i, value := range record {
			if i < len(header) && header[i] != "" {
				fields[header[i]] = strings.TrimSpace(value)
			}
		}
		s.importRow(ctx, result, fields, invoicedomain.SourceCSV, rowNum+2)
	}
	s.logBatch("csv import", result)
	return result, nil
}

// importRow maps and upserts one external row. Row-level problems are
// recorded on the result; nothing here aborts the batch.
func (s *Service) importRow(ctx context.Context, result *domain.SyncResult, fields map[domain.Field]string, source string, rowNum int) {
	result.Total++

	number := strings.TrimSpace(fields[domain.FieldInvoiceNumber])
	email := strings.TrimSpace(fields[domain.FieldCustomerEmail])
	if number == "" || email == "" {
		result.Skipped++
		s.metrics.RecordSyncRow(ctx, source, "skipped")
		return
	}

	amountCents, err := parseAmountCents(fields[domain.FieldAmount])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", rowNum, number, err))
		s.metrics.RecordSyncRow(ctx, source, "error")
		return
	}

	status, defaulted := domain.MapStatus(fields[domain.FieldStatus])
	if defaulted {
		result.DefaultedStatus = append(result.DefaultedStatus, number)
		s.log.Warn("unmapped computerease status, defaulting to unpaid",
			zap.String("invoice_number", number),
			zap.String("external_status", fields[domain.FieldStatus]),
		)
	}

	row := invoicedomain.SyncUpsert{
		InvoiceNumber:  number,
		CustomerName:   strings.TrimSpace(fields[domain.FieldCustomerName]),
		CustomerEmail:  email,
		Description:    strings.TrimSpace(fields[domain.FieldDescription]),
		JobNumber:      strings.TrimSpace(fields[domain.FieldJobNumber]),
		AmountCents:    amountCents,
		Status:         status,
		ServiceDate:    parseDate(fields[domain.FieldServiceDate]),
		DueDate:        parseDate(fields[domain.FieldDueDate]),
		Source:         source,
		ComputerEaseID: strings.TrimSpace(fields[domain.FieldExternalID]),
	}

	outcome, err := s.repo.UpsertFromSync(ctx, row)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", rowNum, number, err))
		s.metrics.RecordSyncRow(ctx, source, "error")
		return
	}
	switch outcome {
	case invoicedomain.UpsertCreated:
		result.Created++
		s.metrics.RecordSyncRow(ctx, source, "created")
	case invoicedomain.UpsertUpdated:
		result.Updated++
		s.metrics.RecordSyncRow(ctx, source, "updated")
	case invoicedomain.UpsertSkipped:
		// Paid invoices are immutable to sync.
		result.Skipped++
		s.metrics.RecordSyncRow(ctx, source, "skipped")
	}
}

// BackSync pushes an already-settled payment to ComputerEase. The result
// is always success=true; a failed push only raises the warning flag.
func (s *Service) BackSync(ctx context.Context, invoiceNumber string) (*domain.BackSyncResult, error) {
	number := strings.TrimSpace(invoiceNumber)
	if number == "" {
		return nil, invoicedomain.ErrMissingFields
	}

	inv, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoicedomain.InvoiceStatusPaid {
		return &domain.BackSyncResult{
			Success: true,
			Warning: true,
			Message: "invoice is not paid; nothing to sync",
		}, nil
	}

	paidAt := time.Now().UTC()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	if err := s.NotifyPayment(ctx, inv, inv.StripePaymentIntentID, paidAt); err != nil {
		s.log.Warn("computerease back-sync failed",
			zap.Error(err),
			zap.String("invoice_number", inv.InvoiceNumber),
		)
		return &domain.BackSyncResult{
			Success: true,
			Warning: true,
			Message: "payment recorded; accounting sync failed and will need a retry",
		}, nil
	}
	if err := s.repo.MarkSyncedBack(ctx, inv.ID, time.Now().UTC()); err != nil {
		s.log.Warn("mark synced back", zap.Error(err), zap.String("invoice_number", inv.InvoiceNumber))
	}
	return &domain.BackSyncResult{Success: true, Message: "payment synced to ComputerEase"}, nil
}

// NotifyPayment implements the settlement layer's accounting hook.
// Invoices with no ComputerEase linkage have nowhere to sync to and
// succeed trivially.
func (s *Service) NotifyPayment(ctx context.Context, inv *invoicedomain.Invoice, reference string, paidAt time.Time) error {
	if !s.syncEnabled || !s.client.Configured() {
		s.log.Debug("computerease sync disabled, skipping payment notify",
			zap.String("invoice_number", inv.InvoiceNumber))
		return nil
	}
	if inv.ComputerEaseID == "" {
		return nil
	}
	return s.client.PostPayment(ctx, client.PaymentNotice{
		ComputerEaseID: inv.ComputerEaseID,
		InvoiceNumber:  inv.InvoiceNumber,
		Reference:      reference,
		AmountCents:    inv.AmountCents,
		Method:         inv.PaymentMethod,
		PaidAt:         paidAt.UTC(),
	})
}

func (s *Service) logBatch(kind string, result *domain.SyncResult) {
	s.log.Info(kind+" finished",
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
		zap.Int("defaulted_status", len(result.DefaultedStatus)),
	)
}

func newResult() *domain.SyncResult {
	return &domain.SyncResult{Errors: []string{}}
}

// normalizeRow lowers a raw REST row onto mapped fields, stringifying
// whatever value types the API returns.
func normalizeRow(raw map[string]any) map[domain.Field]string {
	fields := map[domain.Field]string{}
	for key, value := range raw {
		field, ok := domain.MapField(key)
		if !ok {
			continue
		}
		fields[field] = stringify(value)
	}
	return fields
}

func stringify(value any) string {
	switch cast := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == math.Trunc(cast) {
			return strconv.FormatInt(int64(cast), 10)
		}
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(cast)
	case json.Number:
		return cast.String()
	default:
		return strings.TrimSpace(fmt.Sprint(cast))
	}
}

// parseAmountCents accepts dollar amounts the way CE exports them:
// "1234.50", "$1,234.50", or bare integers.
func parseAmountCents(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, errors.New("missing amount")
	}
	dollars, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if dollars < 0 {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	return int64(math.Round(dollars * 100)), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

func parseDate(raw string) *time.Time {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
