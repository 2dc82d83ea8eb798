package middleware

import (
	"context"
	"net/http"
	"strings"

	"report-api/internal/domain"
	"report-api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ContextKeyUserID = "user_id"

// UserIdentity resolve o usuário a partir de "Authorization: Bearer <jwt>" (HS256, claim sub).
// Token ausente ou inválido deixa a requisição anônima; RequireUser decide se isso é aceitável.
func UserIdentity(secret string, log domain.Logger) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || claims.Subject == "" {
			log.WithContext(c.Request.Context()).Debug("Ignoring invalid bearer token", map[string]interface{}{
				"reason": errorReason(err),
			})
			c.Next()
			return
		}

		c.Set(ContextKeyUserID, claims.Subject)
		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, claims.Subject)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireUser rejeita requisições sem usuário autenticado
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authentication required",
			})
			return
		}
		c.Next()
	}
}

// UserID retorna o usuário autenticado da requisição, ou vazio
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func errorReason(err error) string {
	if err == nil {
		return "missing subject"
	}
	return err.Error()
}
