package handler

import (
	"net/http"

	"report-api/internal/domain"
	"report-api/internal/middleware"
	"report-api/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateReportRequest representa o corpo da criação de relatório
type CreateReportRequest struct {
	Title string `json:"title" binding:"required"`
}

// CreateReportHandler cria um relatório pendente para o usuário autenticado
func (h *Handlers) CreateReportHandler(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	report, err := h.deps.Reports.CreateReport(c.Request.Context(), middleware.UserID(c), req.Title)
	if err != nil {
		h.respondError(c, err, "create report")
		return
	}

	c.JSON(http.StatusCreated, report)
}

// GetReportHandler retorna um relatório do usuário autenticado
func (h *Handlers) GetReportHandler(c *gin.Context) {
	report, err := h.deps.Reports.GetReport(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// GenerateReportHandler gera um relatório pendente do usuário autenticado.
// Responde 200 também quando a geração falha; o status do relatório indica o resultado.
func (h *Handlers) GenerateReportHandler(c *gin.Context) {
	report, err := h.deps.Reports.GenerateReport(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "generate report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// RestoreReportResponse é o relatório restaurado mais um aviso quando expires_at já passou
type RestoreReportResponse struct {
	*domain.Report
	Note string `json:"note,omitempty"`
}

// RestoreReportHandler reverte expired -> completed (override administrativo)
func (h *Handlers) RestoreReportHandler(c *gin.Context) {
	report, err := h.deps.Reports.RestoreReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "restore report")
		return
	}

	resp := RestoreReportResponse{Report: report}
	if report.PastExpiry(h.deps.Clock.Now()) {
		resp.Note = service.RestoreNotePastExpiry
	}
	c.JSON(http.StatusOK, resp)
}
