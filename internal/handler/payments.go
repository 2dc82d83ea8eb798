package handler

import (
	"io"
	"net/http"

	"report-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody limita o corpo aceito no webhook do provedor
const maxWebhookBody = 64 << 10

// CreatePaymentRequest representa o corpo da criação de pagamento
type CreatePaymentRequest struct {
	ReportID string `json:"report_id"`
}

// CreatePaymentHandler cria um pagamento pendente com o preço fixo do relatório
func (h *Handlers) CreatePaymentHandler(c *gin.Context) {
	var req CreatePaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "Invalid request body: " + err.Error(),
			})
			return
		}
	}

	payment, err := h.deps.Payments.CreatePayment(c.Request.Context(), middleware.UserID(c), req.ReportID)
	if err != nil {
		h.respondError(c, err, "create payment")
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// GetPaymentHandler retorna um pagamento do usuário autenticado
func (h *Handlers) GetPaymentHandler(c *gin.Context) {
	payment, err := h.deps.Payments.GetPayment(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get payment")
		return
	}

	c.JSON(http.StatusOK, payment)
}

// StripeWebhookHandler recebe eventos do provedor de pagamento
func (h *Handlers) StripeWebhookHandler(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Unable to read request body",
		})
		return
	}

	payment, err := h.deps.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.respondError(c, err, "process webhook")
		return
	}

	response := gin.H{"received": true}
	if payment != nil {
		response["payment_id"] = payment.ID
		response["status"] = payment.Status
	}
	c.JSON(http.StatusOK, response)
}
