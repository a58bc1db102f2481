package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

const detailKey = "errors.detail"

// exposeErrorDetail makes writeError include the wrapped cause of 500s.
// Enabled outside production only.
func exposeErrorDetail(on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(detailKey, on)
		c.Next()
	}
}

// statusOf maps a use case error kind to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders {"error": message}. Messages of classified errors are
// shown as is; anything else is an internal error.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusOf(err)
	if status < http.StatusInternalServerError {
		msg := err.Error()
		var ue *usecase.Error
		if errors.As(err, &ue) {
			msg = ue.Error()
		}
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}

	logging.From(c).Error("request failed", "err", err)
	body := gin.H{"error": "Internal server error"}
	if status == http.StatusGatewayTimeout {
		body["error"] = "Request timed out"
	}
	if c.GetBool(detailKey) {
		body["detail"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
