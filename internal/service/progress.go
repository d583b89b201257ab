package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

// Recompute rebuilds a batch's counters from its memberships.
func (s *WorkflowService) Recompute(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error) {
	batchID, err := parseID("batch", batchID)
	if err != nil {
		return nil, err
	}

	var batch *domain.Batch
	err = s.run(ctx, "recompute", actor, func(r repository.Repos, log *activityLog) error {
		b, err := r.Batches.LockByID(ctx, batchID)
		if err != nil {
			return wrapNotFound(err, "batch", batchID)
		}
		if actor.ID != b.AssigneeID && !actor.CanManageBatches() {
			return fmt.Errorf("%w: only the assignee or a manager may recompute a batch", domain.ErrForbidden)
		}

		before := [2]int{b.TotalItems, b.CompletedItems}
		changed, err := s.recompute(ctx, r, b)
		if err != nil {
			return err
		}
		if changed {
			log.add(domain.ActionCountersRecomputed, domain.TargetBatch, b.ID, map[string]any{
				"previousTotal":     before[0],
				"previousCompleted": before[1],
				"totalItems":        b.TotalItems,
				"completedItems":    b.CompletedItems,
			})
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// SubmitBatch hands a fully completed batch over to review.
func (s *WorkflowService) SubmitBatch(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error) {
	batchID, err := parseID("batch", batchID)
	if err != nil {
		return nil, err
	}

	var batch *domain.Batch
	err = s.run(ctx, "submit", actor, func(r repository.Repos, log *activityLog) error {
		b, err := r.Batches.LockByID(ctx, batchID)
		if err != nil {
			return wrapNotFound(err, "batch", batchID)
		}
		if err := requireAssignee(actor, b); err != nil {
			return err
		}
		if b.Status.Closed() {
			return fmt.Errorf("%w: batch is already %s", domain.ErrValidation, b.Status.Label())
		}
		if _, err := s.recompute(ctx, r, b); err != nil {
			return err
		}
		if b.TotalItems == 0 {
			return fmt.Errorf("%w: batch has no items", domain.ErrValidation)
		}
		if b.CompletedItems < b.TotalItems {
			return fmt.Errorf("%w: %d/%d items completed", domain.ErrIncompleteItems, b.CompletedItems, b.TotalItems)
		}

		now := s.now()
		if b.Status == domain.BatchStatusAssigned {
			b.Status = domain.BatchStatusInProgress
		}
		if err := transitionBatch(b, domain.BatchStatusSubmitted); err != nil {
			return err
		}
		b.SubmittedAt = timePtr(now)
		b.UpdatedAt = now

		// Items may be reviewed as soon as they are submitted, so the batch
		// can already be fully approved here.
		approved, err := allApproved(ctx, r, b.ID)
		if err != nil {
			return fmt.Errorf("failed to check batch approval: %w", err)
		}
		if approved {
			if err := transitionBatch(b, domain.BatchStatusCompleted); err != nil {
				return err
			}
			b.CompletedAt = timePtr(now)
		}

		if err := r.Batches.Update(ctx, b); err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}

		log.add(domain.ActionBatchSubmitted, domain.TargetBatch, b.ID, map[string]any{
			"assigneeId": b.AssigneeID,
			"totalItems": b.TotalItems,
		})
		if approved {
			log.add(domain.ActionBatchCompleted, domain.TargetBatch, b.ID, map[string]any{
				"totalItems": b.TotalItems,
			})
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ctxLogger(ctx).Info("batch submitted",
		zap.String("batchId", batch.ID),
		zap.String("status", string(batch.Status)),
		zap.Int("totalItems", batch.TotalItems),
	)
	return batch, nil
}
