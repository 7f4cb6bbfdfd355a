package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appctx "clinicrx/internal/core/context"
	"clinicrx/pkg/logger"
)

// Logger writes one entry per request. 4xx responses log at WARN, 5xx at ERROR.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"operator_id", appctx.GetOperatorID(ctx),
		}
		if c.GetHeader(HeaderIdempotencyKey) != "" {
			fields = append(fields, "idempotency_key", c.GetHeader(HeaderIdempotencyKey))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		l := log.WithContext(ctx)
		switch {
		case status >= http.StatusInternalServerError:
			l.Errorw("http request", fields...)
		case status >= http.StatusBadRequest:
			l.Warnw("http request", fields...)
		default:
			l.Infow("http request", fields...)
		}
	}
}
