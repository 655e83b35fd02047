package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/querygate/querygate/internal/core/port"
)

// bearerAuth rejects requests whose Authorization header does not carry the
// configured bearer token. The health endpoint is registered outside the
// authenticated group and never passes through here.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope("UNAUTHORIZED", "missing or invalid bearer token"))
			return
		}
		c.Next()
	}
}

// accessLog emits one structured line per request and records the
// end-to-end duration metric.
func accessLog(logger *slog.Logger, inst port.Instrumentation) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		durationMS := time.Since(start).Milliseconds()

		inst.RecordRequestDuration(c.Request.Context(), float64(durationMS))
		logger.InfoContext(c.Request.Context(), "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", durationMS),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// recovery converts panics into 500 responses instead of dropping the
// connection, logging the panic value.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered in http handler", slog.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorEnvelope("INTERNAL", "internal server error"))
	})
}
