package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Signature verification runs over the exact raw bytes Stripe signed,
// so the body is read before any JSON binding can touch it.
const maxWebhookBody = 1 << 20

func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if err := s.webhook.Process(c.Request.Context(), payload, sigHeader); err != nil {
		s.log.Warn("webhook rejected", zap.Error(err), zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
