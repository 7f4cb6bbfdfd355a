package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "clinicrx/internal/core/context"
)

const (
	HeaderOperatorID = "X-Operator-ID"
	HeaderTerminalID = "X-Terminal-ID"
)

// Operator attaches the clerk and terminal named in request headers to the
// request context. Requests without headers run as "system".
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		op := &appctx.Operator{
			ID:       strings.TrimSpace(c.GetHeader(HeaderOperatorID)),
			Terminal: strings.TrimSpace(c.GetHeader(HeaderTerminalID)),
		}
		if op.ID != "" || op.Terminal != "" {
			c.Request = c.Request.WithContext(appctx.WithOperator(c.Request.Context(), op))
			c.Set("operator_id", op.ID)
		}
		c.Next()
	}
}
