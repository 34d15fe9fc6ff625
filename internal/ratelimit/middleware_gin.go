package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/summitmech/invoicepay/internal/observability/metrics"
)

// Middleware throttles one route per client IP. Limiter failures fail
// open: losing Redis should degrade to unthrottled, not to an outage.
func Middleware(limiter Limiter, m *metrics.Metrics, log *zap.Logger, endpoint string, rate float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rl:" + endpoint + ":" + c.ClientIP()
		result, err := limiter.Allow(c.Request.Context(), key, rate, burst)
		if err != nil {
			log.Warn("rate limiter unavailable, failing open",
				zap.Error(err),
				zap.String("endpoint", endpoint),
			)
			c.Next()
			return
		}
		if !result.Allowed {
			m.RecordRateLimitDenied(c.Request.Context(), endpoint, "bucket_empty")
			if result.RetryAfter > 0 {
				seconds := int(result.RetryAfter.Seconds()) + 1
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		m.RecordRateLimitAllowed(c.Request.Context(), endpoint)
		c.Next()
	}
}
