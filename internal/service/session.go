package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

// Start begins the work session on one membership. It only acts on an
// Assigned membership; calling it again is a no-op.
func (s *WorkflowService) Start(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error) {
	membershipID, err := parseID("membership", membershipID)
	if err != nil {
		return nil, err
	}

	var membership *domain.Membership
	err = s.run(ctx, "start", actor, func(r repository.Repos, log *activityLog) error {
		m, batch, err := loadSession(ctx, r, membershipID)
		if err != nil {
			return err
		}
		if err := requireAssignee(actor, batch); err != nil {
			return err
		}
		membership = m
		if m.Status != domain.MembershipStatusAssigned {
			return nil
		}

		now := s.now()
		// The item only follows when it is still Assigned.
		err = r.WorkItems.TransitionStatus(ctx, m.WorkItemID, domain.ItemStatusAssigned, domain.ItemStatusInProgress)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("failed to start work item %s: %w", m.WorkItemID, err)
		}
		if errors.Is(err, domain.ErrConflict) {
			s.ctxLogger(ctx).Warn("work item was not Assigned at start, leaving its status unchanged",
				zap.String("membershipId", m.ID),
				zap.String("workItemId", m.WorkItemID),
			)
		}

		m.Status = domain.MembershipStatusInProgress
		m.StartedAt = timePtr(now)
		if err := r.Memberships.Update(ctx, m); err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}

		if batch.Status == domain.BatchStatusAssigned {
			if err := transitionBatch(batch, domain.BatchStatusInProgress); err != nil {
				return err
			}
			batch.UpdatedAt = now
			if err := r.Batches.Update(ctx, batch); err != nil {
				return fmt.Errorf("failed to update batch: %w", err)
			}
		}

		log.add(domain.ActionItemStarted, domain.TargetMembership, m.ID, map[string]any{
			"batchId":    batch.ID,
			"workItemId": m.WorkItemID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// Complete finishes the work session on one membership, submits its item for
// review and recomputes the batch counters.
func (s *WorkflowService) Complete(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error) {
	membershipID, err := parseID("membership", membershipID)
	if err != nil {
		return nil, err
	}

	var membership *domain.Membership
	err = s.run(ctx, "complete", actor, func(r repository.Repos, log *activityLog) error {
		m, batch, err := loadSession(ctx, r, membershipID)
		if err != nil {
			return err
		}
		if err := requireAssignee(actor, batch); err != nil {
			return err
		}
		if m.Status == domain.MembershipStatusCompleted {
			return fmt.Errorf("%w: membership %s", domain.ErrAlreadyCompleted, m.ID)
		}

		item, err := r.WorkItems.GetByID(ctx, m.WorkItemID)
		if err != nil {
			return wrapNotFound(err, "work item", m.WorkItemID)
		}
		if err := transitionItem(ctx, r, item, domain.ItemStatusSubmitted); err != nil {
			return err
		}

		now := s.now()
		if m.StartedAt == nil {
			m.StartedAt = timePtr(now)
		}
		m.Status = domain.MembershipStatusCompleted
		m.CompletedAt = timePtr(now)
		if err := r.Memberships.Update(ctx, m); err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}

		if batch.Status == domain.BatchStatusAssigned {
			if err := transitionBatch(batch, domain.BatchStatusInProgress); err != nil {
				return err
			}
		}
		if _, err := s.recompute(ctx, r, batch); err != nil {
			return err
		}

		membership = m
		log.add(domain.ActionItemCompleted, domain.TargetMembership, m.ID, map[string]any{
			"batchId":        batch.ID,
			"workItemId":     m.WorkItemID,
			"completedItems": batch.CompletedItems,
			"totalItems":     batch.TotalItems,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}
