package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	"github.com/summitmech/invoicepay/internal/observability/logger"
	"github.com/summitmech/invoicepay/internal/observability/metrics"
	"github.com/summitmech/invoicepay/pkg/db/pagination"
)

type Params struct {
	fx.In

	Repo    invoicedomain.Repository
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	repo    invoicedomain.Repository
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) invoicedomain.Service {
	return &Service{
		repo:    p.Repo,
		log:     p.Log.Named("invoice"),
		metrics: p.Metrics,
	}
}

// Lookup resolves an invoice by number and billing email. Both a wrong
// number and a wrong email produce the same not-found result, so the
// endpoint can not be used to enumerate valid invoice numbers.
func (s *Service) Lookup(ctx context.Context, req invoicedomain.LookupRequest) (*invoicedomain.InvoiceView, error) {
	number := strings.TrimSpace(req.InvoiceNumber)
	email := strings.TrimSpace(req.Email)

	if number == "" || email == "" {
		return nil, invoicedomain.ErrMissingFields
	}
	if !invoicedomain.ValidInvoiceNumber(number) {
		return nil, invoicedomain.ErrInvalidNumber
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invoicedomain.ErrInvalidEmail
	}

	inv, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, invoicedomain.ErrNotFound) {
			s.record(ctx, "not_found")
			return nil, invoicedomain.ErrNotFound
		}
		return nil, err
	}

	if !strings.EqualFold(strings.TrimSpace(inv.CustomerEmail), email) {
		logger.FromContext(ctx).Debug("invoice lookup email mismatch",
			zap.String("invoice_number", number),
		)
		s.record(ctx, "not_found")
		return nil, invoicedomain.ErrNotFound
	}

	items, err := s.repo.ListLineItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "found")
	return buildView(inv, items), nil
}

// List pages through invoices for the admin dashboard, newest first.
func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResponse, error) {
	filter := invoicedomain.ListFilter{
		Limit: pagination.Pagination{PageSize: req.PageSize}.Limit(),
	}

	if status := strings.TrimSpace(req.Status); status != "" {
		candidate := invoicedomain.InvoiceStatus(status)
		if !invoicedomain.ValidStatus(candidate) {
			return nil, invoicedomain.ErrInvalidStatus
		}
		filter.Status = candidate
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, invoicedomain.ErrMissingFields
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, invoicedomain.ErrMissingFields
		}
		filter.Cursor = id
	}

	// Fetch one extra row to learn whether another page exists.
	rows, err := s.repo.List(ctx, invoicedomain.ListFilter{
		Status: filter.Status,
		Cursor: filter.Cursor,
		Limit:  filter.Limit + 1,
	})
	if err != nil {
		return nil, err
	}

	rows, info := pagination.BuildCursorPageInfo(rows, filter.Limit, func(inv *invoicedomain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: inv.ID.String()})
		return token
	})

	resp := &invoicedomain.ListResponse{
		Invoices:      make([]invoicedomain.AdminInvoiceView, 0, len(rows)),
		NextPageToken: info.NextPageToken,
		HasMore:       info.HasMore,
	}
	for _, inv := range rows {
		resp.Invoices = append(resp.Invoices, buildAdminView(inv))
	}
	return resp, nil
}

func (s *Service) Stats(ctx context.Context) (*invoicedomain.StatsResponse, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) record(ctx context.Context, outcome string) {
	s.metrics.RecordInvoiceLookup(ctx, outcome)
}

// buildView strips everything a customer has no business seeing:
// internal ids, Stripe linkage, accounting sync state.
func buildView(inv *invoicedomain.Invoice, items []invoicedomain.InvoiceLineItem) *invoicedomain.InvoiceView {
	view := &invoicedomain.InvoiceView{
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		Description:   inv.Description,
		Amount:        centsToDollars(inv.AmountCents),
		Status:        inv.Status,
		AlreadyPaid:   inv.Status == invoicedomain.InvoiceStatusPaid,
	}
	if inv.ServiceDate != nil {
		view.ServiceDate = inv.ServiceDate.UTC().Format("2006-01-02")
	}
	if inv.DueDate != nil {
		view.DueDate = inv.DueDate.UTC().Format("2006-01-02")
	}
	if inv.PaidAt != nil {
		view.PaidAt = inv.PaidAt.UTC().Format(time.RFC3339)
	}
	for _, item := range items {
		view.LineItems = append(view.LineItems, invoicedomain.LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity,
			Amount:      centsToDollars(item.AmountCents),
		})
	}
	return view
}

func buildAdminView(inv *invoicedomain.Invoice) invoicedomain.AdminInvoiceView {
	view := invoicedomain.AdminInvoiceView{
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerName:   inv.CustomerName,
		CustomerEmail:  inv.CustomerEmail,
		Amount:         centsToDollars(inv.AmountCents),
		Status:         inv.Status,
		PaymentMethod:  inv.PaymentMethod,
		Source:         inv.Source,
		ComputerEaseID: inv.ComputerEaseID,
		SyncedBack:     inv.ComputerEaseSyncedAt != nil,
	}
	if inv.ServiceDate != nil {
		view.ServiceDate = inv.ServiceDate.UTC().Format("2006-01-02")
	}
	if inv.DueDate != nil {
		view.DueDate = inv.DueDate.UTC().Format("2006-01-02")
	}
	if inv.PaidAt != nil {
		view.PaidAt = inv.PaidAt.UTC().Format(time.RFC3339)
	}
	return view
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
