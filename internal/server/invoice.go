package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
)

// LookupInvoice returns the customer-visible view of an invoice. A
// wrong invoice number and a wrong email produce the same 404.
func (s *Server) LookupInvoice(c *gin.Context) {
	var req invoicedomain.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrMissingFields)
		return
	}

	view, err := s.invoiceSvc.Lookup(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoice":      view,
		"already_paid": view.AlreadyPaid,
	})
}

// ListInvoices pages through invoices for the admin dashboard.
func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrMissingFields)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InvoiceStats serves the admin dashboard counters.
func (s *Server) InvoiceStats(c *gin.Context) {
	stats, err := s.invoiceSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
