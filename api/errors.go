package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"propmarket/models"
)

// ErrorResponse is the body of every failed call
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity, "invalid_payload"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrPaymentRequired):
		return http.StatusPaymentRequired, "payment_required"
	case errors.Is(err, models.ErrPaymentFailed):
		return http.StatusPaymentRequired, "payment_failed"
	case errors.Is(err, models.ErrStillLocked):
		return http.StatusLocked, "still_locked"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("Error: %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: msg})
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: msg})
}
