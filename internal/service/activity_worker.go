package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/notifier"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/queue"
	"github.com/kursadbilgin/labelflow/internal/ratelimit"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	webhookLimiterKey    = "webhook"
	requeueDelay         = time.Second
	maxRequeueJitterMs   = 250
)

// ActivityWorker persists consumed activity entries and forwards notifiable
// ones to the outbound webhook.
type ActivityWorker struct {
	activity    repository.ActivityRepository
	consumer    queue.Consumer
	notifier    notifier.Notifier
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	randIntn    func(n int) int
	sleep       func(ctx context.Context, d time.Duration)
}

// NewActivityWorker builds a worker. A nil notifier disables webhook delivery.
func NewActivityWorker(
	activity repository.ActivityRepository,
	consumer queue.Consumer,
	n notifier.Notifier,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*ActivityWorker, error) {
	if activity == nil {
		return nil, fmt.Errorf("activity repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if n != nil && rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required when notifications are enabled")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ActivityWorker{
		activity:    activity,
		consumer:    consumer,
		notifier:    n,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		randIntn:    rand.Intn,
		sleep:       sleepContext,
	}, nil
}

func (w *ActivityWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the activity queue with the configured concurrency until
// the context is cancelled.
func (w *ActivityWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("activity worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.ActivityQueue),
			)

			err := w.consumer.Consume(groupCtx, queue.ActivityQueue, w.processMessage)
			if err != nil {
				w.logger.Error("activity worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("activity worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// processMessage returns an error only when the message should be requeued.
func (w *ActivityWorker) processMessage(ctx context.Context, msg queue.ActivityMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(w.logger, ctx)

	entry := msg.Entry()
	if err := w.activity.Create(ctx, &entry); err != nil {
		w.metrics.IncActivityProcessed("persist_failed")
		return fmt.Errorf("failed to persist activity %s: %w", entry.ID, err)
	}
	w.metrics.IncActivityProcessed("persisted")

	if w.notifier == nil || !domain.Notifiable(entry.Action) {
		return nil
	}

	w.metrics.IncWorkerInFlight()
	defer w.metrics.DecWorkerInFlight()

	if err := w.rateLimiter.Wait(ctx, webhookLimiterKey); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	start := w.now()
	receipt, err := w.notifier.Notify(ctx, entry)
	w.metrics.ObserveWebhookDuration(w.now().Sub(start))

	if err == nil {
		w.metrics.IncActivityProcessed("notified")
		fields := []zap.Field{
			zap.String("activityId", entry.ID),
			zap.String("action", entry.Action),
		}
		if receipt != nil {
			fields = append(fields, zap.Int("statusCode", receipt.StatusCode), zap.String("requestId", receipt.RequestID))
		}
		logger.Debug("activity delivered to webhook", fields...)
		return nil
	}

	if notifier.IsTransient(err) {
		w.metrics.IncActivityProcessed("notify_retry")
		logger.Warn("webhook delivery failed, requeueing",
			zap.String("activityId", entry.ID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		w.sleep(ctx, w.requeueDelay())
		return fmt.Errorf("transient webhook failure for activity %s: %w", entry.ID, err)
	}

	w.metrics.IncActivityProcessed("notify_failed")
	logger.Error("webhook delivery failed permanently",
		zap.String("activityId", entry.ID),
		zap.String("action", entry.Action),
		zap.Error(err),
	)
	return nil
}

func (w *ActivityWorker) requeueDelay() time.Duration {
	jitterMs := 0
	if w.randIntn != nil {
		jitterMs = w.randIntn(maxRequeueJitterMs + 1)
	}
	return requeueDelay + time.Duration(jitterMs)*time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
