package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/pkg/logger"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload is the content of ErrorBody.
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error attached to the gin context.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		ctx := c.Request.Context()
		err := c.Errors.Last().Err

		status := http.StatusInternalServerError
		body := ErrorBody{Error: ErrorPayload{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
			}
			status = appErr.HTTPStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			body.Error = ErrorPayload{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
		} else {
			logger.Error(ctx, "unhandled error", "error", err)
		}

		if store, key := idempotencyFrom(c); store != nil {
			if err := store.FailKey(ctx, key, status, "application/json", body); err != nil {
				logger.Warn(ctx, "failed to record idempotent failure", "key", key, "error", err)
			}
		}

		c.JSON(status, body)
	}
}
