package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcelogudines/sales/pkg/errors"
	"github.com/marcelogudines/sales/pkg/logging"
)

// Response is the envelope every sales endpoint answers with
type Response struct {
	Success       bool                  `json:"success"`
	Data          any                   `json:"data,omitempty"`
	TraceID       string                `json:"traceId"`
	Notifications []errors.Notification `json:"notifications"`
	Error         *ErrorBody            `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Respond writes a successful envelope
func Respond(c *gin.Context, status int, data any, notifications []errors.Notification) {
	if notifications == nil {
		notifications = []errors.Notification{}
	}
	c.JSON(status, Response{
		Success:       true,
		Data:          data,
		TraceID:       GetRequestID(c),
		Notifications: notifications,
	})
}

// RespondError writes a failed envelope for err. data is included when the
// failure still has a payload, such as the existing sale on a conflict.
// The error is attached to the context so ErrorHandler can log it.
func RespondError(c *gin.Context, err error, data any) {
	appErr := errors.FromError(err)
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, errorResponse(c, appErr, data))
}

// AbortWithError aborts the request with an error
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	AbortWithAppError(c, errors.FromError(err))
}

// AbortWithAppError aborts the request with an AppError
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, errorResponse(c, appErr, nil))
}

func errorResponse(c *gin.Context, appErr *errors.AppError, data any) Response {
	notifications := appErr.Notifications
	if notifications == nil {
		notifications = []errors.Notification{}
	}
	return Response{
		Success:       false,
		Data:          data,
		TraceID:       GetRequestID(c),
		Notifications: notifications,
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	}
}

// ErrorHandler logs errors attached to the context and renders the envelope
// when the handler did not write a response itself
func ErrorHandler(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := errors.FromError(c.Errors.Last().Err)
		logError(logger, c, appErr)

		if !c.Writer.Written() {
			c.JSON(appErr.HTTPStatus, errorResponse(c, appErr, nil))
		}
	}
}

func logError(logger *logging.Logger, c *gin.Context, appErr *errors.AppError) {
	level := slog.LevelError
	if appErr.HTTPStatus < http.StatusInternalServerError {
		level = slog.LevelWarn
	}

	attrs := []any{
		"code", appErr.Code,
		"message", appErr.Message,
		"status", appErr.HTTPStatus,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	}
	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err.Error())
	}
	if len(appErr.Notifications) > 0 {
		codes := make([]string, 0, len(appErr.Notifications))
		for _, n := range appErr.Notifications {
			codes = append(codes, n.Code)
		}
		attrs = append(attrs, "notifications", codes)
	}

	ctx := c.Request.Context()
	logger.WithContext(ctx).Log(ctx, level, "API error", attrs...)
}
