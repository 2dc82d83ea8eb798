package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"report-api/internal/domain"
	"report-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

const serviceName = "Report API"

// Dependencies reúne os colaboradores dos handlers
type Dependencies struct {
	Reports        domain.ReportService
	Payments       domain.PaymentService
	Store          domain.ReportStore
	Limiter        domain.RateLimiter
	Metrics        domain.MetricsRecorder
	MetricsHandler http.Handler // nil quando observabilidade está desligada
	Features       map[string]bool
	CronSecret     string
	JWTSecret      string
	Version        string
	Clock          domain.Clock
	Logger         domain.Logger
}

// Handlers contém os handlers da API
type Handlers struct {
	deps      Dependencies
	logger    domain.Logger
	startTime time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Version == "" {
		deps.Version = "1.0.0"
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	return &Handlers{
		deps:      deps,
		logger:    deps.Logger,
		startTime: time.Now(),
	}
}

// SetupRoutes configura as rotas da API
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.Use(
		middleware.RequestID(),
		middleware.UserIdentity(h.deps.JWTSecret, h.logger),
		middleware.NewRateLimiterMiddleware(h.deps.Limiter, h.deps.Metrics, h.logger, middleware.DefaultBypassPaths...),
	)

	// Rotas públicas (fora do rate limiting)
	router.GET("/", h.RootHandler)
	router.GET("/health", h.HealthHandler)
	router.GET("/docs", h.DocsHandler)
	router.GET("/openapi.json", h.OpenAPIHandler)
	if h.deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(h.deps.MetricsHandler))
	}

	api := router.Group("/api/v1")

	reports := api.Group("/reports", middleware.RequireUser())
	{
		reports.POST("", h.CreateReportHandler)
		reports.GET("/:id", h.GetReportHandler)
		reports.POST("/:id/generate", h.GenerateReportHandler)
	}

	cron := api.Group("/cron", middleware.CronSecret(h.deps.CronSecret, h.logger))
	{
		cron.POST("/expire-reports", h.ExpireReportsHandler)
		cron.POST("/delete-expired-reports", h.DeleteExpiredReportsHandler)
	}

	admin := api.Group("/admin", middleware.CronSecret(h.deps.CronSecret, h.logger))
	{
		admin.POST("/reports/:id/restore", h.RestoreReportHandler)
	}

	payments := api.Group("/payments", middleware.RequireUser())
	{
		payments.POST("", h.CreatePaymentHandler)
		payments.GET("/:id", h.GetPaymentHandler)
	}

	api.POST("/webhooks/stripe", h.StripeWebhookHandler)
}

// RootHandler apresenta o serviço
func (h *Handlers) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": h.deps.Version,
		"docs":    "/docs",
	})
}

// HealthHandler implementa health check incluindo o store
func (h *Handlers) HealthHandler(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	storeStatus := "ok"

	if h.deps.Store != nil {
		if err := h.deps.Store.Health(c.Request.Context()); err != nil {
			h.logger.WithContext(c.Request.Context()).Error("Health check failed", err, nil)
			status, code = "unhealthy", http.StatusServiceUnavailable
			storeStatus = "unavailable"
		}
	}

	c.JSON(code, gin.H{
		"status":         status,
		"service":        serviceName,
		"version":        h.deps.Version,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"store":          storeStatus,
		"features":       h.deps.Features,
		"system": gin.H{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": formatBytes(memAlloc()),
		},
	})
}

func memAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// formatBytes formata bytes em formato legível
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatUint(bytes, 10) + " B"
	}

	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) + " " + "KMGTPE"[exp:exp+1] + "B"
}
