package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
)

func (s *Server) CreateCardPayment(c *gin.Context) {
	var req paymentdomain.CreateCardPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrMissingFields)
		return
	}

	resp, err := s.paymentSvc.CreateCardPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ConfirmPayment(c *gin.Context) {
	var req paymentdomain.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrMissingIntent)
		return
	}

	resp, err := s.paymentSvc.ConfirmPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateACHPayment accepts bank details, which pass through to Stripe
// and are never logged or persisted. The mandate needs the real client
// IP and user agent, so they are captured here at the edge.
func (s *Server) CreateACHPayment(c *gin.Context) {
	var req paymentdomain.CreateACHPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrMissingFields)
		return
	}
	req.ClientIP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := s.paymentSvc.CreateACHPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
