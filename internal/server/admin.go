package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// requireAdminPassword gates admin reads behind a bearer password. With
// no password configured the routes stay open, matching a single-tenant
// deployment behind its own network boundary.
func (s *Server) requireAdminPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := s.cfg.AdminPassword
		if expected == "" {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
