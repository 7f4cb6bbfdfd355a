package middleware

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"clinicrx/internal/core/apperror"
	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/core/idempotency"
	"clinicrx/pkg/logger"
)

// ErrorHandler renders the last gin error as {code, message, details}.
// Errors that are not AppErrors become INTERNAL_ERROR and their text stays in the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "route", c.FullPath(), "error", err)
			appErr = apperror.NewInternal(err).WithDetail("request_id", appctx.GetRequestID(ctx))
		} else if appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}

		status := apperror.GetHTTPStatus(appErr)
		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

// failIdempotency stores the error response for the request's key (best-effort).
func failIdempotency(c *gin.Context, status int, body any) {
	key, store, ok := IdempotencyFromContext(c)
	if !ok {
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		logger.Warn(c.Request.Context(), "failed to encode idempotent error response", "error", err)
		return
	}
	if err := store.FailKey(c.Request.Context(), key, status, "application/json", raw); err != nil {
		logger.Warn(c.Request.Context(), "failed to store idempotent error response",
			"key", key, "error", err)
	}
}

// IdempotencyFromContext returns the key and store set by Idempotency for this request.
func IdempotencyFromContext(c *gin.Context) (string, idempotency.Store, bool) {
	key, exists := c.Get(ContextIdempotencyKey)
	if !exists {
		return "", nil, false
	}
	raw, exists := c.Get(ContextIdempotencyStore)
	if !exists {
		return "", nil, false
	}
	store, ok := raw.(idempotency.Store)
	if !ok || store == nil {
		return "", nil, false
	}
	k, ok := key.(string)
	return k, store, ok
}
