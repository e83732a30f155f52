package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"

	"github.com/kvachev/fx-rate-service/internal/cache"
	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/handler"
	"github.com/kvachev/fx-rate-service/internal/metrics"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/kvachev/fx-rate-service/internal/provider"
	"github.com/kvachev/fx-rate-service/internal/service"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := config.Load()

	// Setup logger
	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting FX Rate Service",
		zap.String("environment", cfg.Environment),
		zap.Int("httpPort", cfg.HTTPPort),
		zap.String("activeProvider", cfg.ActiveProvider),
		zap.String("cacheBackend", cfg.CacheBackend),
	)

	// Tracing
	shutdownTracing := setupTracing(cfg, logger)
	defer shutdownTracing()

	// Metrics
	appMetrics := metrics.NewMetrics("fx_rate_service")

	// Excluded currencies apply everywhere in the core
	excluded := model.NewExcludedSet(cfg.ExcludedCurrencies)

	// Providers: registry + selector, each provider wrapped with retry and
	// its own circuit breaker
	selector, err := provider.NewSelector(cfg, provider.DefaultRegistry(), excluded, logger, func(p provider.RateProvider) provider.RateProvider {
		breaker := provider.NewBreaker(p.Name(), cfg.BreakerThreshold, cfg.BreakerCooldown, func(name string, from, to provider.BreakerState) {
			logger.Warn("Circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			appMetrics.SetCircuitState(name, float64(to))
		})
		return provider.NewResilientProvider(p, breaker, cfg.RetryMaxAttempts, logger, appMetrics)
	})
	if err != nil {
		logger.Fatal("Provider configuration invalid", zap.Error(err))
	}
	logger.Info("Active rate provider", zap.String("provider", selector.Active().Name()))

	// Cache
	ttlPolicy, err := cache.NewTTLPolicy(cfg)
	if err != nil {
		logger.Fatal("TTL policy configuration invalid", zap.Error(err))
	}
	store, closeStore := setupStore(cfg, logger)
	defer closeStore()
	smartCache := cache.NewSmartCache(store, ttlPolicy, model.Normalize(cfg.HomeCurrency), logger, appMetrics)

	// Conversion engine
	conversions := service.NewConversionService(smartCache, selector, excluded, logger, appMetrics)

	// HTTP server
	router := setupRouter(cfg, logger, conversions)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		panic(err)
	}

	return logger
}

func setupTracing(cfg *config.Config, logger *zap.Logger) func() {
	if !cfg.TracingEnabled {
		return func() {}
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		logger.Warn("Jaeger exporter setup failed, tracing disabled", zap.Error(err))
		return func() {}
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("fx-rate-service"),
			semconv.DeploymentEnvironment(cfg.Environment),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("Tracing enabled", zap.String("collector", cfg.JaegerURL))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Tracer shutdown error", zap.Error(err))
		}
	}
}

func setupStore(cfg *config.Config, logger *zap.Logger) (cache.TableStore, func()) {
	if cfg.CacheBackend != "redis" {
		logger.Info("Using in-memory cache store")
		return cache.NewMemoryStore(), func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warn("Redis connection failed, falling back to in-memory cache", zap.Error(err))
		_ = redisClient.Close()
		return cache.NewMemoryStore(), func() {}
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisStore(redisClient), func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}
}

func setupRouter(cfg *config.Config, logger *zap.Logger, conversions *service.ConversionService) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(correlationID())
	router.Use(requestLogger(logger))

	httpHandler := handler.NewHTTPHandler(conversions, logger)
	httpHandler.SetupRoutes(router)

	if cfg.MetricsEnabled {
		router.GET(cfg.MetricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	return router
}

// correlationID tags every request with an X-Request-ID, generating one when
// the caller did not send one.
func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("requestId", c.GetString("requestID")),
		)
	}
}
