package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultAuditInterval = time.Minute
	defaultAuditPageSize = 100
)

// SystemActor is the identity used by background jobs.
var SystemActor = domain.Actor{ID: "system", Role: domain.RoleAdmin}

// BatchRecomputer is the part of the workflow the auditor drives.
type BatchRecomputer interface {
	ListBatches(ctx context.Context, actor domain.Actor, params repository.BatchListParams) ([]domain.Batch, int64, error)
	Recompute(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error)
}

// CounterAuditor periodically recomputes the counters of open batches and
// logs any drift it repairs.
type CounterAuditor struct {
	batches  BatchRecomputer
	logger   *zap.Logger
	interval time.Duration
	pageSize int
}

func NewCounterAuditor(batches BatchRecomputer, interval time.Duration, pageSize int, logger *zap.Logger) (*CounterAuditor, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch recomputer is required")
	}
	if interval <= 0 {
		interval = defaultAuditInterval
	}
	if pageSize <= 0 || pageSize > defaultAuditPageSize {
		pageSize = defaultAuditPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CounterAuditor{
		batches:  batches,
		logger:   logger,
		interval: interval,
		pageSize: pageSize,
	}, nil
}

func (a *CounterAuditor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := a.audit(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error("counter audit initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.audit(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("counter audit failed", zap.Error(err))
			}
		}
	}
}

// audit walks every open batch and returns how many had drifted counters.
func (a *CounterAuditor) audit(ctx context.Context) (int, error) {
	repaired := 0
	for _, status := range []domain.BatchStatus{
		domain.BatchStatusAssigned,
		domain.BatchStatusInProgress,
		domain.BatchStatusSubmitted,
	} {
		status := status
		// Each page continues after the last batch seen rather than at an offset.
		var after *repository.BatchCursor
		for {
			batches, _, err := a.batches.ListBatches(ctx, SystemActor, repository.BatchListParams{
				Status:   &status,
				After:    after,
				PageSize: a.pageSize,
			})
			if err != nil {
				return repaired, fmt.Errorf("failed to list %s batches: %w", status, err)
			}

			for i := range batches {
				if a.recompute(ctx, batches[i]) {
					repaired++
				}
			}

			if len(batches) < a.pageSize {
				break
			}
			last := batches[len(batches)-1]
			after = &repository.BatchCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
	return repaired, nil
}

// recompute repairs one batch and reports whether its counters had drifted.
func (a *CounterAuditor) recompute(ctx context.Context, before domain.Batch) bool {
	after, err := a.batches.Recompute(ctx, SystemActor, before.ID)
	if err != nil {
		a.logger.Error("failed to recompute batch counters",
			zap.String("batchId", before.ID),
			zap.Error(err),
		)
		return false
	}
	if after.TotalItems == before.TotalItems && after.CompletedItems == before.CompletedItems {
		return false
	}

	a.logger.Warn("batch counters drifted and were repaired",
		zap.String("batchId", before.ID),
		zap.Int("previousTotal", before.TotalItems),
		zap.Int("previousCompleted", before.CompletedItems),
		zap.Int("totalItems", after.TotalItems),
		zap.Int("completedItems", after.CompletedItems),
	)
	return true
}
