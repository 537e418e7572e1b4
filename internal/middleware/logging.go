// internal/middleware/logging.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request with the authenticated address when one
// is present. Ledger mutations additionally produce ledger events, so this
// only covers the HTTP surface.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": duration.Milliseconds(),
			"ip":       c.ClientIP(),
		}
		if address, exists := c.Get("address"); exists {
			fields["address"] = address
		}

		entry := logrus.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request processed")
		}
	}
}
