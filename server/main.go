package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venuely/api/routes"
	"venuely/internal/auth"
	"venuely/internal/notifications"
	"venuely/internal/payments"
	"venuely/internal/shared/config"
	"venuely/internal/shared/constants"
	"venuely/internal/shared/database"
	"venuely/pkg/logger"
	"venuely/pkg/mq"
	"venuely/pkg/obs"
	"venuely/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	appLogger = logger.New(cfg.LogLevel)
	logger.SetDefault(appLogger)

	gin.SetMode(cfg.GinMode)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	shutdownTracer, err := obs.InitTracer(rootCtx, cfg.Tracing)
	if err != nil {
		appLogger.Warn("Tracing disabled", slog.Any("error", err))
		shutdownTracer = func(context.Context) error { return nil }
	}

	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Domain events are best-effort; without a broker they are dropped.
	var events mq.EventPublisher = mq.Nop()
	if cfg.RabbitMQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			appLogger.Warn("RabbitMQ unavailable, payment events disabled", slog.Any("error", err))
		} else {
			events = publisher
			appLogger.Info("RabbitMQ publisher connected", slog.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}

	pipeline, err := notifications.NewPipeline(
		cfg,
		notifications.NewRepository(db.GetPostgreSQL()),
		auth.NewContactDirectory(auth.NewRepository(db.GetPostgreSQL())),
		appLogger,
	)
	if err != nil {
		appLogger.Error("Failed to initialize notification pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	pipeline.Start(rootCtx)

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), &ratelimit.Config{
			Enabled:                 cfg.RateLimit.Enabled,
			WindowDuration:          cfg.RateLimit.WindowDuration,
			DefaultRequests:         cfg.RateLimit.DefaultRequests,
			PublicRequests:          cfg.RateLimit.PublicRequests,
			AuthRequests:            cfg.RateLimit.AuthRequests,
			BookingRequests:         cfg.RateLimit.BookingRequests,
			BookingCriticalRequests: cfg.RateLimit.BookingCriticalRequests,
			PaymentRequests:         cfg.RateLimit.PaymentRequests,
			AdminRequests:           cfg.RateLimit.AdminRequests,
			HealthRequests:          cfg.RateLimit.HealthRequests,
			WhitelistedIPs:          cfg.RateLimit.WhitelistedIPs,
			KeyPrefix:               constants.CACHE_KEY_RATE_LIMIT,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Bool("redis", db.GetRedis() != nil),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	appRouter := routes.NewRouter(cfg, db, appLogger, pipeline.Dispatcher, events)
	engine := setupRouter(cfg, appRouter, rateLimiter, appLogger)

	var reconciler *payments.Reconciler
	if cfg.Payments.ReconcileEnabled {
		reconciler = payments.NewReconciler(appRouter.PaymentService, cfg.Payments.ReconcileInterval, appLogger)
		reconciler.Start(rootCtx)
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_status", fmt.Sprintf("http://localhost:%s/status", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.Bool("redis", db.GetRedis() != nil),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
			slog.Bool("kafka_notifications", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	if reconciler != nil {
		reconciler.Stop()
	}
	if err := pipeline.Stop(); err != nil {
		appLogger.Error("Error stopping notification pipeline", slog.Any("error", err))
	}
	if err := events.Close(); err != nil {
		appLogger.Error("Error closing event publisher", slog.Any("error", err))
	}
	if err := shutdownTracer(ctx); err != nil {
		appLogger.Error("Error flushing traces", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter, appLogger *logger.Logger) *gin.Engine {
	engine := gin.New()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter, appLogger))
	}

	appRouter.SetupRoutes(engine)
	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
