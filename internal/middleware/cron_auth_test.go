package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCronSecret(t *testing.T) {
	tests := []struct {
		name           string
		configured     string
		header         string
		setHeader      bool
		expectedStatus int
		expectHandler  bool
	}{
		{
			name:           "Should accept exact secret",
			configured:     "cron-secret",
			header:         "cron-secret",
			setHeader:      true,
			expectedStatus: http.StatusOK,
			expectHandler:  true,
		},
		{
			name:           "Should reject wrong secret",
			configured:     "cron-secret",
			header:         "wrong",
			setHeader:      true,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Should reject secret prefix",
			configured:     "cron-secret",
			header:         "cron",
			setHeader:      true,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Should reject differently cased secret",
			configured:     "cron-secret",
			header:         "CRON-SECRET",
			setHeader:      true,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Should reject missing header",
			configured:     "cron-secret",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Should reject everything when no secret is configured",
			configured:     "",
			header:         "",
			setHeader:      true,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			gin.SetMode(gin.TestMode)
			handlerCalled := false

			router := gin.New()
			router.POST("/cron", CronSecret(tt.configured, newPermissiveLogger()), func(c *gin.Context) {
				handlerCalled = true
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			req := httptest.NewRequest(http.MethodPost, "/cron", nil)
			if tt.setHeader {
				req.Header.Set(CronSecretHeader, tt.header)
			}

			// Act
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Assert
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized","message":"Invalid cron secret"}`, w.Body.String())
			}
		})
	}
}
