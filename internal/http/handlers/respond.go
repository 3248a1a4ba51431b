package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/fintechindex/internal/sentinel"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusForbidden, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondTimeout(ctx *gin.Context) {
	RespondError(ctx, http.StatusRequestTimeout, "timeout", "The request took too long. Please try again.", nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// respondStoreError maps a store error onto the envelope. Anything that is not
// a known sentinel is logged with the request id and answered with a generic
// message.
func respondStoreError(ctx *gin.Context, err error, notFound, fallback string) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		RespondNotFound(ctx, notFound)
	case errors.Is(err, sentinel.ErrTimeout):
		RespondTimeout(ctx)
	case errors.Is(err, sentinel.ErrConflict):
		RespondConflict(ctx, "conflict", "Resource already exists")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "store_error",
			"err", err,
			"route", ctx.FullPath(),
		)
		RespondInternal(ctx, fallback)
	}
}
