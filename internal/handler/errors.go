package handler

import (
	"errors"
	"net/http"

	"report-api/internal/domain"

	"github.com/gin-gonic/gin"
)

// respondError traduz erros de domínio para respostas HTTP.
// Só erros inesperados são logados como Error.
func (h *Handlers) respondError(c *gin.Context, err error, action string) {
	var (
		status int
		code   string
	)

	switch {
	case errors.Is(err, domain.ErrReportNotFound), errors.Is(err, domain.ErrPaymentNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrInvalidSignature):
		status, code = http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrPaymentsDisabled):
		status, code = http.StatusServiceUnavailable, "payments_disabled"
	default:
		h.logger.WithContext(c.Request.Context()).Error("Failed to "+action, err, map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "Failed to " + action,
		})
		return
	}

	c.JSON(status, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}
