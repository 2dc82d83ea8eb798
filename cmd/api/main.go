package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report-api/internal/config"
	"report-api/internal/domain"
	"report-api/internal/generator"
	"report-api/internal/handler"
	"report-api/internal/logger"
	"report-api/internal/metrics"
	"report-api/internal/ratelimit"
	"report-api/internal/service"
	"report-api/internal/storage"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

func main() {
	// Configuração inválida impede a subida do processo
	configLoader := config.NewLoader()
	cfg, err := configLoader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	features := config.NewFeatureFlagEvaluator(cfg)

	appLogger.Info("Starting Report API", map[string]interface{}{
		"version":   version,
		"mode":      cfg.Mode,
		"log_level": cfg.LogLevel,
		"port":      cfg.ServerPort,
		"features":  features.Snapshot(),
	})

	var (
		recorder       domain.MetricsRecorder = metrics.NoopRecorder{}
		metricsHandler http.Handler
	)
	if features.IsEnabled(config.FeatureObservability) {
		prom := metrics.NewPrometheusRecorder()
		recorder, metricsHandler = prom, prom.Handler()
	}

	// Storage selecionado via Strategy Pattern
	if cfg.ReportStore == string(storage.RedisStorageType) {
		appLogger.Info("Using Redis storage", map[string]interface{}{
			"addr": cfg.RedisAddr(),
			"db":   cfg.RedisDB,
		})
	}
	factory := storage.NewStorageFactory()
	store, err := factory.CreateStorage(storage.BuildStorageConfig(cfg), appLogger)
	if err != nil {
		appLogger.Error("Failed to create storage", err, map[string]interface{}{
			"type": cfg.ReportStore,
		})
		os.Exit(1)
	}
	defer store.Close()

	clock := domain.SystemClock{}
	reportService := service.NewReportService(store, generator.New(cfg, appLogger), clock, recorder, appLogger)
	verifier := service.NewWebhookVerifier(cfg.StripeWebhookSecret, cfg.WebhookTolerance(), clock)
	paymentService := service.NewPaymentService(store, features, verifier, clock, recorder, appLogger)

	registry := ratelimit.NewRegistry(ratelimit.RegistryConfig{
		Capacity:   cfg.RateLimitPerMinute,
		RefillRate: cfg.RefillRate(),
		Clock:      clock,
	})

	// Janitor de buckets ociosos, encerrado no shutdown
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	registry.StartJanitor(janitorCtx, cfg.CleanupInterval(), func(removed, remaining int) {
		recorder.RateLimitBuckets(remaining)
		if removed > 0 {
			appLogger.Debug("Evicted idle rate limit buckets", map[string]interface{}{
				"removed":   removed,
				"remaining": remaining,
			})
		}
	})

	handlers := handler.NewHandlers(handler.Dependencies{
		Reports:        reportService,
		Payments:       paymentService,
		Store:          store,
		Limiter:        registry,
		Metrics:        recorder,
		MetricsHandler: metricsHandler,
		Features:       features.Snapshot(),
		CronSecret:     cfg.CronSecret,
		JWTSecret:      cfg.AuthJWTSecret,
		Version:        version,
		Clock:          clock,
		Logger:         appLogger,
	})

	switch cfg.GinMode {
	case gin.ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	handlers.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", map[string]interface{}{
			"port": cfg.ServerPort,
			"addr": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("Report API is running", map[string]interface{}{
		"port":                 cfg.ServerPort,
		"store":                cfg.ReportStore,
		"rate_limit_per_min":   cfg.RateLimitPerMinute,
		"bucket_sweep_seconds": cfg.RateLimitCleanupInterval,
	})

	<-quit
	appLogger.Info("Shutting down server...", nil)
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err, nil)
		os.Exit(1)
	}

	appLogger.Info("Server stopped gracefully", nil)
}
