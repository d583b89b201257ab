package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

// SkipCode classifies why an id was left out of a partial-success operation.
type SkipCode string

const (
	SkipDuplicate      SkipCode = "DUPLICATE"
	SkipNotFound       SkipCode = "NOT_FOUND"
	SkipWrongProject   SkipCode = "WRONG_PROJECT"
	SkipNotPending     SkipCode = "NOT_PENDING"
	SkipAlreadyInBatch SkipCode = "ALREADY_IN_BATCH"
	SkipClaimLost      SkipCode = "CLAIM_LOST"
	SkipNotInBatch     SkipCode = "NOT_IN_BATCH"
	SkipStarted        SkipCode = "STARTED"
)

type SkippedItem struct {
	ID     string
	Code   SkipCode
	Reason string
}

type AssignmentResult struct {
	AssignedCount int
	SkippedCount  int
	SkippedItems  []SkippedItem
}

func (r *AssignmentResult) skip(id string, code SkipCode, reason string) {
	r.SkippedItems = append(r.SkippedItems, SkippedItem{ID: id, Code: code, Reason: reason})
	r.SkippedCount++
}

type RemovalResult struct {
	RemovedCount int
	SkippedCount int
	SkippedItems []SkippedItem
}

func (r *RemovalResult) skip(id string, code SkipCode, reason string) {
	r.SkippedItems = append(r.SkippedItems, SkippedItem{ID: id, Code: code, Reason: reason})
	r.SkippedCount++
}

type CreateBatchInput struct {
	ProjectID  string
	Name       string
	AssigneeID string
	DueAt      *time.Time
	ItemIDs    []string
}

// CreateBatch creates an Assigned batch and assigns the given items to it in
// the same unit of work.
func (s *WorkflowService) CreateBatch(
	ctx context.Context,
	actor domain.Actor,
	in CreateBatchInput,
) (*domain.Batch, *AssignmentResult, error) {
	if err := requireManager(actor, "create batches"); err != nil {
		return nil, nil, err
	}
	projectID, err := parseID("project", in.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	batch := &domain.Batch{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       strings.TrimSpace(in.Name),
		AssigneeID: strings.TrimSpace(in.AssigneeID),
		AssignerID: actor.ID,
		Status:     domain.BatchStatusAssigned,
		DueAt:      in.DueAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := batch.Validate(); err != nil {
		return nil, nil, err
	}

	var result *AssignmentResult
	err = s.run(ctx, "create_batch", actor, func(r repository.Repos, log *activityLog) error {
		if _, err := r.Projects.GetByID(ctx, projectID); err != nil {
			return wrapNotFound(err, "project", projectID)
		}
		if err := r.Batches.Create(ctx, batch); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		result, err = s.assignInTx(ctx, r, batch, in.ItemIDs)
		if err != nil {
			return err
		}
		if _, err := s.recompute(ctx, r, batch); err != nil {
			return err
		}

		log.add(domain.ActionBatchCreated, domain.TargetBatch, batch.ID, map[string]any{
			"name":       batch.Name,
			"assigneeId": batch.AssigneeID,
			"assigned":   result.AssignedCount,
			"skipped":    result.SkippedCount,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.ctxLogger(ctx).Info("batch created",
		zap.String("batchId", batch.ID),
		zap.String("assigneeId", batch.AssigneeID),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("skipped", result.SkippedCount),
	)
	return batch, result, nil
}

// AssignItems claims Pending work items for a batch. Each id is validated on
// its own; failing ids are reported as skipped and never abort the call.
func (s *WorkflowService) AssignItems(
	ctx context.Context,
	actor domain.Actor,
	batchID string,
	itemIDs []string,
) (*AssignmentResult, error) {
	if err := requireManager(actor, "assign items"); err != nil {
		return nil, err
	}
	batchID, err := parseID("batch", batchID)
	if err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one work item id is required", domain.ErrValidation)
	}

	var result *AssignmentResult
	err = s.run(ctx, "assign_items", actor, func(r repository.Repos, log *activityLog) error {
		batch, err := r.Batches.LockByID(ctx, batchID)
		if err != nil {
			return wrapNotFound(err, "batch", batchID)
		}
		if batch.Status.Closed() {
			return fmt.Errorf("%w: cannot assign items to a %s batch", domain.ErrValidation, batch.Status.Label())
		}

		result, err = s.assignInTx(ctx, r, batch, itemIDs)
		if err != nil {
			return err
		}
		if _, err := s.recompute(ctx, r, batch); err != nil {
			return err
		}

		if result.AssignedCount > 0 {
			log.add(domain.ActionItemsAssigned, domain.TargetBatch, batch.ID, map[string]any{
				"assigned":   result.AssignedCount,
				"skipped":    result.SkippedCount,
				"totalItems": batch.TotalItems,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ctxLogger(ctx).Info("items assigned",
		zap.String("batchId", batchID),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("skipped", result.SkippedCount),
	)
	return result, nil
}

func (s *WorkflowService) assignInTx(
	ctx context.Context,
	r repository.Repos,
	batch *domain.Batch,
	rawIDs []string,
) (*AssignmentResult, error) {
	result := &AssignmentResult{SkippedItems: []SkippedItem{}}
	if len(rawIDs) == 0 {
		return result, nil
	}

	seen := make(map[string]struct{}, len(rawIDs))
	candidates := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			result.skip(id, SkipDuplicate, "duplicate id in request")
			continue
		}
		seen[id] = struct{}{}
		if _, err := uuid.Parse(id); err != nil {
			result.skip(id, SkipNotFound, "work item not found")
			continue
		}
		candidates = append(candidates, id)
	}

	items, err := r.WorkItems.GetByIDs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load work items: %w", err)
	}
	byID := make(map[string]domain.WorkItem, len(items))
	datasetIDs := make([]string, 0, len(items))
	for _, item := range items {
		byID[item.ID] = item
		datasetIDs = append(datasetIDs, item.DatasetID)
	}

	datasets, err := r.Datasets.GetByIDs(ctx, sortedUnique(datasetIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	projectOf := make(map[string]string, len(datasets))
	for _, ds := range datasets {
		projectOf[ds.ID] = ds.ProjectID
	}

	eligible := make([]string, 0, len(candidates))
	for _, id := range candidates {
		item, ok := byID[id]
		if !ok {
			result.skip(id, SkipNotFound, "work item not found")
			continue
		}
		if projectOf[item.DatasetID] != batch.ProjectID {
			result.skip(id, SkipWrongProject, "work item belongs to a different project")
			continue
		}
		if item.Status != domain.ItemStatusPending {
			result.skip(id, SkipNotPending, fmt.Sprintf("already has status %s", item.Status.Label()))
			continue
		}
		if _, err := r.Memberships.GetByBatchAndItem(ctx, batch.ID, id); err == nil {
			result.skip(id, SkipAlreadyInBatch, "already in this batch")
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to check membership for item %s: %w", id, err)
		}
		eligible = append(eligible, id)
	}

	// Claims lock item rows until commit. Taking them in id order keeps two
	// calls with overlapping ids from deadlocking on each other.
	now := s.now()
	for _, id := range sortedUnique(eligible) {
		// The conditional update is the claim: a concurrent claimer moves the
		// item out of Pending first and this one affects no rows.
		if err := r.WorkItems.TransitionStatus(ctx, id, domain.ItemStatusPending, domain.ItemStatusAssigned); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				result.skip(id, SkipClaimLost, "already assigned")
				continue
			}
			return nil, fmt.Errorf("failed to claim work item %s: %w", id, err)
		}

		membership := &domain.Membership{
			ID:         uuid.NewString(),
			BatchID:    batch.ID,
			WorkItemID: id,
			Status:     domain.MembershipStatusAssigned,
			AssignedAt: now,
		}
		if err := r.Memberships.Create(ctx, membership); err != nil {
			return nil, fmt.Errorf("failed to create membership for item %s: %w", id, err)
		}
		result.AssignedCount++
	}

	for _, skipped := range result.SkippedItems {
		s.metrics.IncAssignmentSkipped(string(skipped.Code))
	}
	return result, nil
}

// RemoveItems takes not-yet-started items out of a batch that has not started.
// Memberships past Assigned are reported as skipped and left untouched.
func (s *WorkflowService) RemoveItems(
	ctx context.Context,
	actor domain.Actor,
	batchID string,
	itemIDs []string,
) (*RemovalResult, error) {
	if err := requireManager(actor, "remove items"); err != nil {
		return nil, err
	}
	batchID, err := parseID("batch", batchID)
	if err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one work item id is required", domain.ErrValidation)
	}

	result := &RemovalResult{SkippedItems: []SkippedItem{}}
	err = s.run(ctx, "remove_items", actor, func(r repository.Repos, log *activityLog) error {
		*result = RemovalResult{SkippedItems: []SkippedItem{}}

		batch, err := r.Batches.LockByID(ctx, batchID)
		if err != nil {
			return wrapNotFound(err, "batch", batchID)
		}
		if batch.Status != domain.BatchStatusAssigned {
			return fmt.Errorf("%w: items can only be removed while the batch is Assigned, batch is %s",
				domain.ErrValidation, batch.Status.Label())
		}

		seen := make(map[string]struct{}, len(itemIDs))
		eligible := make([]domain.Membership, 0, len(itemIDs))
		for _, raw := range itemIDs {
			id := strings.TrimSpace(raw)
			if _, dup := seen[id]; dup {
				result.skip(id, SkipDuplicate, "duplicate id in request")
				continue
			}
			seen[id] = struct{}{}
			if _, err := uuid.Parse(id); err != nil {
				result.skip(id, SkipNotInBatch, "not in this batch")
				continue
			}

			m, err := r.Memberships.GetByBatchAndItem(ctx, batch.ID, id)
			if errors.Is(err, domain.ErrNotFound) {
				result.skip(id, SkipNotInBatch, "not in this batch")
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to load membership for item %s: %w", id, err)
			}
			if m.Status != domain.MembershipStatusAssigned {
				result.skip(id, SkipStarted, fmt.Sprintf("membership already %s", m.Status.Label()))
				continue
			}
			eligible = append(eligible, *m)
		}

		if err := releaseMemberships(ctx, r, eligible); err != nil {
			return err
		}
		result.RemovedCount = len(eligible)
		if _, err := s.recompute(ctx, r, batch); err != nil {
			return err
		}

		if result.RemovedCount > 0 {
			log.add(domain.ActionItemsRemoved, domain.TargetBatch, batch.ID, map[string]any{
				"removed":    result.RemovedCount,
				"skipped":    result.SkippedCount,
				"totalItems": batch.TotalItems,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ctxLogger(ctx).Info("items removed",
		zap.String("batchId", batchID),
		zap.Int("removed", result.RemovedCount),
		zap.Int("skipped", result.SkippedCount),
	)
	return result, nil
}

// DeleteBatch deletes a batch in which no membership has started and returns
// its items to the Pending pool.
func (s *WorkflowService) DeleteBatch(ctx context.Context, actor domain.Actor, batchID string) error {
	if err := requireManager(actor, "delete batches"); err != nil {
		return err
	}
	batchID, err := parseID("batch", batchID)
	if err != nil {
		return err
	}

	return s.run(ctx, "delete_batch", actor, func(r repository.Repos, log *activityLog) error {
		batch, err := r.Batches.LockByID(ctx, batchID)
		if err != nil {
			return wrapNotFound(err, "batch", batchID)
		}
		if batch.Status.Closed() {
			return fmt.Errorf("%w: cannot delete a %s batch", domain.ErrValidation, batch.Status.Label())
		}

		memberships, err := r.Memberships.ListByBatch(ctx, batch.ID)
		if err != nil {
			return fmt.Errorf("failed to list memberships: %w", err)
		}
		for _, m := range memberships {
			if m.Status != domain.MembershipStatusAssigned {
				return fmt.Errorf("%w: cannot delete batch with started items (item %s is %s)",
					domain.ErrValidation, m.WorkItemID, m.Status.Label())
			}
		}

		if err := releaseMemberships(ctx, r, memberships); err != nil {
			return err
		}
		if err := r.Batches.Delete(ctx, batch.ID); err != nil {
			return fmt.Errorf("failed to delete batch: %w", err)
		}

		log.add(domain.ActionBatchDeleted, domain.TargetBatch, batch.ID, map[string]any{
			"releasedItems": len(memberships),
		})
		return nil
	})
}
