package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"report-api/internal/domain"

	"github.com/gin-gonic/gin"
)

// ClientIDHeader permite ao cliente informar explicitamente seu identificador
const ClientIDHeader = "X-Client-ID"

// DefaultBypassPaths nunca passam pelo rate limiter (health checks e documentação)
var DefaultBypassPaths = []string{"/", "/health", "/docs", "/openapi.json", "/metrics"}

// RateLimiterMiddleware implementa o controle de admissão por identificador
type RateLimiterMiddleware struct {
	limiter domain.RateLimiter
	metrics domain.MetricsRecorder
	logger  domain.Logger
	bypass  map[string]struct{}
}

// NewRateLimiterMiddleware cria uma nova instância do middleware
func NewRateLimiterMiddleware(
	limiter domain.RateLimiter,
	metrics domain.MetricsRecorder,
	logger domain.Logger,
	bypassPaths ...string,
) gin.HandlerFunc {
	bypass := make(map[string]struct{}, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = struct{}{}
	}

	middleware := &RateLimiterMiddleware{
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
		bypass:  bypass,
	}

	return middleware.Handle
}

// Handle é o handler principal do middleware
func (m *RateLimiterMiddleware) Handle(c *gin.Context) {
	if _, skip := m.bypass[c.Request.URL.Path]; skip {
		c.Next()
		return
	}

	identifier := ResolveIdentifier(c)
	result := m.limiter.Allow(identifier)
	m.metrics.RateLimitDecision(result.Allowed)

	// Headers são gravados antes de c.Next(): depois do corpo escrito o gin não aceita mais headers
	setRateLimitHeaders(c, result)

	if !result.Allowed {
		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(retryAfter))

		m.logger.WithContext(c.Request.Context()).Info("Request rate limited", map[string]interface{}{
			"identifier":  identifier,
			"limit":       result.Limit,
			"retry_after": retryAfter,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Rate limit exceeded",
			"message":     fmt.Sprintf("Too many requests. Please retry after %d seconds.", retryAfter),
			"retry_after": retryAfter,
			"limit":       result.Limit,
		})
		return
	}

	c.Next()
}

// ResolveIdentifier escolhe a chave do bucket:
// usuário autenticado > X-Client-ID > IP do cliente > "unknown"
func ResolveIdentifier(c *gin.Context) string {
	if userID := UserID(c); userID != "" {
		return "user:" + userID
	}

	if clientID := strings.TrimSpace(c.GetHeader(ClientIDHeader)); clientID != "" {
		return "client:" + clientID
	}

	if ip := GetClientIP(c); ip != "" {
		return "ip:" + ip
	}

	return "unknown"
}

// GetClientIP extrai o IP do cliente considerando proxies e load balancers.
// Prioridade: X-Forwarded-For > X-Real-IP > RemoteAddr
func GetClientIP(c *gin.Context) string {
	// O primeiro IP do X-Forwarded-For é o do cliente original
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}

	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	return c.Request.RemoteAddr
}

// setRateLimitHeaders define headers informativos de rate limiting
func setRateLimitHeaders(c *gin.Context, result *domain.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(result.Reset.Seconds()))))
}
