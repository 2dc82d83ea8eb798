package middleware

import (
	"report-api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	ContextKeyRequestID = "request_id"
)

// RequestID propaga o X-Request-ID recebido ou gera um novo, e leva os dados
// da requisição para o contexto usado nos logs
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := logger.ContextWithRequestInfo(
			c.Request.Context(),
			requestID,
			GetClientIP(c),
			"",
			c.GetHeader("User-Agent"),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
