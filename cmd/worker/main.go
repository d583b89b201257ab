package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/labelflow/internal/config"
	"github.com/kursadbilgin/labelflow/internal/handler"
	"github.com/kursadbilgin/labelflow/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/labelflow/internal/infra/redis"
	"github.com/kursadbilgin/labelflow/internal/notifier"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/queue"
	"github.com/kursadbilgin/labelflow/internal/ratelimit"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"github.com/kursadbilgin/labelflow/internal/service"
	"github.com/kursadbilgin/labelflow/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const auditPageSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "labelflow-worker")
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
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL, "labelflow-worker")
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, "labelflow-worker")
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close()
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.ConsumerPrefetch, cfg.MaxDeliveryAttempts, logger)

	metrics := observability.NewMetrics()

	var (
		webhook     notifier.Notifier
		rateLimiter ratelimit.RateLimiter
	)
	if cfg.NotificationsEnabled() {
		wn, err := notifier.NewWebhookNotifier(cfg.WebhookURL)
		if err != nil {
			logger.Fatal("webhook notifier initialization failed", zap.Error(err))
		}
		rl, err := infraredis.NewRedisRateLimiter(rdb, "webhook", cfg.WebhookRatePerSec)
		if err != nil {
			logger.Fatal("webhook rate limiter initialization failed", zap.Error(err))
		}
		webhook, rateLimiter = wn, rl
	} else {
		logger.Info("WEBHOOK_URL not set, activity is persisted without notifications")
	}

	worker, err := service.NewActivityWorker(
		repository.NewGormActivityRepo(db),
		consumer,
		webhook,
		rateLimiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("activity worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	workflow, err := service.NewWorkflowService(
		repository.NewGormUnitOfWork(db),
		queue.NewActivityRecorder(publisher),
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("workflow service initialization failed", zap.Error(err))
	}
	auditor, err := service.NewCounterAuditor(
		workflow,
		time.Duration(cfg.AuditIntervalSec)*time.Second,
		auditPageSize,
		logger,
	)
	if err != nil {
		logger.Fatal("counter auditor initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	handler.RegisterHealthRoutes(app, map[string]handler.Pinger{
		"postgres": handler.PingFunc(sqlDB.PingContext),
		"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		"rabbitmq": rabbit,
	}, metrics)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Start(groupCtx)
	})
	g.Go(func() error {
		return auditor.Start(groupCtx)
	})
	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%d", cfg.WorkerPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(time.Duration(cfg.ShutdownTimeout) * time.Second)
	})

	logger.Info("labelflow worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Bool("notifications", cfg.NotificationsEnabled()),
		zap.Int("port", cfg.WorkerPort),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("labelflow worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("labelflow worker stopped")
}
