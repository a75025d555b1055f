package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamlytics/internal/core/services"
	httphandlers "streamlytics/internal/handlers/http"
	"streamlytics/internal/infrastructure/middleware"
	"streamlytics/internal/infrastructure/monitoring"
	"streamlytics/internal/infrastructure/realtime"
	repositories "streamlytics/internal/infrastructure/repositories"
	"streamlytics/internal/infrastructure/scheduler"
	"streamlytics/pkg/config"
	"streamlytics/pkg/logger"
	"streamlytics/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/streamlytics/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: "production",
		SampleRate:  1.0,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	store := repoFactory.CreateEventRepository()
	cache := repoFactory.CreateCounterCache()

	// Initialize monitoring
	prometheusCollector := monitoring.NewPrometheusCollector()
	hostSampler := monitoring.NewGopsutilSampler()

	// Initialize core services
	aggregator := monitoring.NewInstrumentedAggregator(
		services.NewMetricsAggregator(store, hostSampler, log),
		prometheusCollector,
	)
	processor := services.NewEventProcessor(store, cache, cfg.Processing.BufferCapacity, log)
	dashboardService := services.NewAnalyticsDashboard(store, cache, aggregator, log)

	// Initialize real-time hub and WebSocket server
	hub := realtime.NewHub(log)
	hub.SetSendFailureHook(prometheusCollector.RecordBroadcastError)
	wsServer := realtime.NewWebSocketServer(hub, processor, dashboardService, cache, cfg.WebSocket.PingInterval, log)

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("sqlite", store.Ping, 2*time.Second)
	healthChecker.AddCheck("cache", cache.Ping, 2*time.Second)

	// Background scheduler: metrics cycle + queue drain
	sched := scheduler.NewScheduler(aggregator, processor, cache, store, hub, scheduler.Config{
		MetricsInterval: cfg.Scheduler.MetricsInterval,
		DrainInterval:   cfg.Scheduler.DrainInterval,
		SnapshotTTL:     cfg.Scheduler.SnapshotTTL,
	}, log)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	// Keep pipeline gauges current
	gaugeStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				prometheusCollector.SetSubscriberCount(hub.SubscriberCount())
				prometheusCollector.SetBufferSize(processor.BufferSize())
			case <-gaugeStop:
				return
			}
		}
	}()

	// Initialize HTTP handlers
	analyticsHandler := httphandlers.NewAnalyticsHandler(
		processor,
		dashboardService,
		store,
		cache,
		hub,
		healthChecker,
		prometheusCollector,
		repoFactory.CacheAvailable(),
		log,
	)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggingMiddleware(zapLogger))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Global HTTP rate limiting (if enabled)
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	analyticsHandler.SetupRoutes(router)

	// Real-time dashboard feed
	router.GET("/ws/:organization_id", wsServer.Handle)

	// Liveness endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint backed by real dependency checks
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Streamlytics server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Streamlytics server...")

	// Stop background loops before the HTTP surface
	close(gaugeStop)
	sched.Stop()
	schedCancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server gracefully
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		// Force close if graceful shutdown fails
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	// Close repository factory
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("Streamlytics server stopped")
}
