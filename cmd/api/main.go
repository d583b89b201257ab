package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kursadbilgin/labelflow/internal/config"
	"github.com/kursadbilgin/labelflow/internal/handler"
	"github.com/kursadbilgin/labelflow/internal/infra/postgresql"
	"github.com/kursadbilgin/labelflow/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/labelflow/internal/infra/redis"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/queue"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"github.com/kursadbilgin/labelflow/internal/service"
	"github.com/kursadbilgin/labelflow/internal/storage"
	"github.com/kursadbilgin/labelflow/internal/transport"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "labelflow-api")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL, "labelflow-api")
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, "labelflow-api")
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close()

	blobs, err := storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		logger.Fatal("minio initialization failed", zap.Error(err))
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, "api", cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	recorder := queue.NewActivityRecorder(publisher)
	uow := repository.NewGormUnitOfWork(db)

	workflow, err := service.NewWorkflowService(uow, recorder, metrics, logger)
	if err != nil {
		logger.Fatal("workflow service initialization failed", zap.Error(err))
	}
	catalog, err := service.NewCatalogService(
		uow,
		blobs,
		repository.NewGormActivityRepo(db),
		recorder,
		metrics,
		cfg.MaxUploadBytes,
		logger,
	)
	if err != nil {
		logger.Fatal("catalog service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
	})
	app.Use(recover.New())
	app.Use(handler.CorrelationID())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, map[string]handler.Pinger{
		"postgres": handler.PingFunc(sqlDB.PingContext),
		"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		"rabbitmq": rabbit,
		"minio":    blobs,
	}, metrics)

	api := app.Group("", handler.ActorIdentity(), handler.RateLimit(limiter, logger))
	if err := handler.RegisterWorkflowRoutes(api, workflow); err != nil {
		logger.Fatal("workflow routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterCatalogRoutes(api, catalog); err != nil {
		logger.Fatal("catalog routes registration failed", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down labelflow api")
		if err := app.ShutdownWithTimeout(time.Duration(cfg.ShutdownTimeout) * time.Second); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("labelflow api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Error("api server stopped", zap.Error(err))
	}
}
