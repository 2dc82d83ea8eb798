package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ExpireReportsHandler executa a varredura de expiração (soft delete).
// A autenticação do agendador acontece no middleware CronSecret.
func (h *Handlers) ExpireReportsHandler(c *gin.Context) {
	result, err := h.deps.Reports.ExpireOldReports(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "expire reports")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"operation":     result.Operation,
		"expired_count": result.Count,
		"ran_at":        result.RanAt,
	})
}

// DeleteExpiredReportsHandler executa a remoção definitiva após a carência
func (h *Handlers) DeleteExpiredReportsHandler(c *gin.Context) {
	result, err := h.deps.Reports.DeleteExpiredReports(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "delete expired reports")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"operation":     result.Operation,
		"deleted_count": result.Count,
		"ran_at":        result.RanAt,
	})
}
