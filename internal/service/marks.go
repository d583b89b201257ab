package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
)

type MarkInput struct {
	ClassName string
	Shape     domain.Shape
	Points    []domain.Point
}

func (s *WorkflowService) CreateMark(ctx context.Context, actor domain.Actor, itemID string, in MarkInput) (*domain.LabelMark, error) {
	itemID, err := parseID("work item", itemID)
	if err != nil {
		return nil, err
	}

	var mark *domain.LabelMark
	err = s.run(ctx, "create_mark", actor, func(r repository.Repos, log *activityLog) error {
		if _, err := lockEditableItem(ctx, r, actor, itemID); err != nil {
			return err
		}

		now := s.now()
		m := &domain.LabelMark{
			ID:         uuid.NewString(),
			WorkItemID: itemID,
			CreatedBy:  actor.ID,
			ClassName:  strings.TrimSpace(in.ClassName),
			Shape:      in.Shape,
			Points:     in.Points,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := m.Validate(); err != nil {
			return err
		}
		if err := r.LabelMarks.Create(ctx, m); err != nil {
			return fmt.Errorf("failed to create label mark: %w", err)
		}

		log.add(domain.ActionMarkCreated, domain.TargetLabelMark, m.ID, map[string]any{
			"workItemId": itemID,
			"className":  m.ClassName,
			"shape":      string(m.Shape),
		})
		mark = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mark, nil
}

func (s *WorkflowService) UpdateMark(ctx context.Context, actor domain.Actor, markID string, in MarkInput) (*domain.LabelMark, error) {
	markID, err := parseID("label mark", markID)
	if err != nil {
		return nil, err
	}

	var mark *domain.LabelMark
	err = s.run(ctx, "update_mark", actor, func(r repository.Repos, log *activityLog) error {
		m, err := r.LabelMarks.GetByID(ctx, markID)
		if err != nil {
			return wrapNotFound(err, "label mark", markID)
		}
		if _, err := lockEditableItem(ctx, r, actor, m.WorkItemID); err != nil {
			return err
		}

		m.ClassName = strings.TrimSpace(in.ClassName)
		m.Shape = in.Shape
		m.Points = in.Points
		m.UpdatedAt = s.now()
		if err := m.Validate(); err != nil {
			return err
		}
		if err := r.LabelMarks.Update(ctx, m); err != nil {
			return fmt.Errorf("failed to update label mark: %w", err)
		}

		log.add(domain.ActionMarkUpdated, domain.TargetLabelMark, m.ID, map[string]any{
			"workItemId": m.WorkItemID,
			"className":  m.ClassName,
			"shape":      string(m.Shape),
		})
		mark = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mark, nil
}

func (s *WorkflowService) DeleteMark(ctx context.Context, actor domain.Actor, markID string) error {
	markID, err := parseID("label mark", markID)
	if err != nil {
		return err
	}

	return s.run(ctx, "delete_mark", actor, func(r repository.Repos, log *activityLog) error {
		m, err := r.LabelMarks.GetByID(ctx, markID)
		if err != nil {
			return wrapNotFound(err, "label mark", markID)
		}
		if _, err := lockEditableItem(ctx, r, actor, m.WorkItemID); err != nil {
			return err
		}
		if err := r.LabelMarks.Delete(ctx, m.ID); err != nil {
			return wrapNotFound(err, "label mark", m.ID)
		}

		log.add(domain.ActionMarkDeleted, domain.TargetLabelMark, m.ID, map[string]any{
			"workItemId": m.WorkItemID,
		})
		return nil
	})
}

// lockEditableItem locks the batch owning an item and checks that the actor
// is its assignee and that the item still accepts mark changes.
func lockEditableItem(ctx context.Context, r repository.Repos, actor domain.Actor, itemID string) (*domain.WorkItem, error) {
	memberships, err := r.Memberships.ListByWorkItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, fmt.Errorf("%w: work item %s is not in a batch", domain.ErrValidation, itemID)
	}

	batch, err := r.Batches.LockByID(ctx, memberships[0].BatchID)
	if err != nil {
		return nil, wrapNotFound(err, "batch", memberships[0].BatchID)
	}
	if err := requireAssignee(actor, batch); err != nil {
		return nil, err
	}

	item, err := r.WorkItems.GetByID(ctx, itemID)
	if err != nil {
		return nil, wrapNotFound(err, "work item", itemID)
	}
	if !item.Status.Editable() {
		return nil, fmt.Errorf("%w: marks on a %s work item cannot change",
			domain.ErrValidation, strings.ToLower(item.Status.Label()))
	}
	return item, nil
}
