package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	cedomain "github.com/summitmech/invoicepay/internal/computerease/domain"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
)

// requireSyncKey guards the sync endpoints with the shared secret. The
// compare is constant-time; an unset key closes the endpoints entirely.
func (s *Server) requireSyncKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := s.cfg.SyncAPIKey
		provided := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if expected == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) ComputerEaseImport(c *gin.Context) {
	result, err := s.syncSvc.Import(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": result})
}

type csvImportRequest struct {
	CSVData string `json:"csv_data"`
}

func (s *Server) CSVImport(c *gin.Context) {
	var req csvImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, cedomain.ErrEmptyCSV)
		return
	}

	result, err := s.syncSvc.ImportCSV(c.Request.Context(), req.CSVData)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": result})
}

type backSyncRequest struct {
	InvoiceNumber string `json:"invoice_number"`
}

// UpdateComputerEasePayment pushes a settled payment to ComputerEase.
// The push is best-effort: sync failure still responds 200, flagged
// with warning, because the payment itself is already final.
func (s *Server) UpdateComputerEasePayment(c *gin.Context) {
	var req backSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrMissingFields)
		return
	}

	result, err := s.syncSvc.BackSync(c.Request.Context(), req.InvoiceNumber)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
