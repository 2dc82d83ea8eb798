package middleware

import (
	"crypto/subtle"
	"net/http"

	"report-api/internal/domain"

	"github.com/gin-gonic/gin"
)

const CronSecretHeader = "X-Cron-Secret"

// CronSecret exige que X-Cron-Secret seja exatamente igual ao segredo configurado.
// A rejeição acontece antes de qualquer handler, portanto antes de qualquer acesso ao store.
// Com segredo vazio todas as chamadas são rejeitadas.
func CronSecret(secret string, logger domain.Logger) gin.HandlerFunc {
	expected := []byte(secret)

	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(CronSecretHeader))

		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.WithContext(c.Request.Context()).Warn("Cron call rejected", map[string]interface{}{
				"path":       c.Request.URL.Path,
				"has_header": len(provided) > 0,
			})

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid cron secret",
			})
			return
		}

		c.Next()
	}
}
