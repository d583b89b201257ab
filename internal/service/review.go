package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

type ReviewInput struct {
	WorkItemID        string
	Decision          domain.Decision
	Feedback          *string
	DefectCategoryIDs []string
}

type ReviewOutcome struct {
	Verdict           domain.ReviewVerdict
	Item              domain.WorkItem
	CompletedBatchIDs []string
}

// RejectedItem is one entry of a batch's rework queue.
type RejectedItem struct {
	MembershipID     string
	WorkItem         domain.WorkItem
	Feedback         string
	DefectCategories []string
	ReviewerID       string
	RejectedAt       time.Time
}

// Review records a reviewer's verdict on a Submitted item. Approving the last
// unapproved item of a Submitted batch completes that batch.
func (s *WorkflowService) Review(ctx context.Context, actor domain.Actor, in ReviewInput) (*ReviewOutcome, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !actor.CanReview() {
		return nil, fmt.Errorf("%w: reviewer privilege is required", domain.ErrForbidden)
	}
	itemID, err := parseID("work item", in.WorkItemID)
	if err != nil {
		return nil, err
	}
	if !in.Decision.IsValid() {
		return nil, fmt.Errorf("%w: invalid decision %q", domain.ErrValidation, in.Decision)
	}

	feedback := normalizeOptionalString(in.Feedback)
	categoryIDs := make([]string, 0, len(in.DefectCategoryIDs))
	for _, id := range in.DefectCategoryIDs {
		if id = strings.TrimSpace(id); id != "" {
			categoryIDs = append(categoryIDs, id)
		}
	}
	categoryIDs = sortedUnique(categoryIDs)

	if in.Decision == domain.DecisionRejected {
		if feedback == nil {
			return nil, fmt.Errorf("%w: feedback is required when rejecting", domain.ErrValidation)
		}
		if len(categoryIDs) == 0 {
			return nil, fmt.Errorf("%w: at least one defect category is required when rejecting", domain.ErrValidation)
		}
	}

	var outcome *ReviewOutcome
	err = s.run(ctx, "review", actor, func(r repository.Repos, log *activityLog) error {
		categories, err := resolveCategories(ctx, r, categoryIDs)
		if err != nil {
			return err
		}

		item, err := r.WorkItems.GetByID(ctx, itemID)
		if err != nil {
			return wrapNotFound(err, "work item", itemID)
		}
		if item.Status != domain.ItemStatusSubmitted {
			return fmt.Errorf("%w: work item is not awaiting review (status %s)", domain.ErrValidation, item.Status.Label())
		}

		// Lock owning batches before touching the item so concurrent reviews
		// of sibling items serialize on the batch.
		memberships, err := r.Memberships.ListByWorkItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("failed to list memberships: %w", err)
		}
		batchIDs := make([]string, 0, len(memberships))
		for _, m := range memberships {
			batchIDs = append(batchIDs, m.BatchID)
		}
		batches := make([]*domain.Batch, 0, len(batchIDs))
		for _, batchID := range sortedUnique(batchIDs) {
			b, err := r.Batches.LockByID(ctx, batchID)
			if err != nil {
				return wrapNotFound(err, "batch", batchID)
			}
			batches = append(batches, b)
		}

		if err := transitionItem(ctx, r, item, in.Decision.ItemStatus()); err != nil {
			return err
		}

		now := s.now()
		verdict := &domain.ReviewVerdict{
			ID:               uuid.NewString(),
			WorkItemID:       item.ID,
			ReviewerID:       actor.ID,
			Decision:         in.Decision,
			Feedback:         feedback,
			DefectCategories: categories,
			CreatedAt:        now,
		}
		if err := r.Verdicts.Create(ctx, verdict); err != nil {
			return fmt.Errorf("failed to create review verdict: %w", err)
		}

		outcome = &ReviewOutcome{Verdict: *verdict, Item: *item, CompletedBatchIDs: []string{}}

		action := domain.ActionItemApproved
		if in.Decision == domain.DecisionRejected {
			action = domain.ActionItemRejected
		}
		detail := map[string]any{
			"sequence":         verdict.Sequence,
			"batchIds":         batchIDs,
			"defectCategories": verdict.CategoryNames(),
		}
		if feedback != nil {
			detail["feedback"] = *feedback
		}
		log.add(action, domain.TargetWorkItem, item.ID, detail)

		if in.Decision != domain.DecisionApproved {
			return nil
		}

		for _, b := range batches {
			if b.Status != domain.BatchStatusSubmitted {
				continue
			}
			approved, err := allApproved(ctx, r, b.ID)
			if err != nil {
				return fmt.Errorf("failed to check batch approval: %w", err)
			}
			if !approved {
				continue
			}
			if err := transitionBatch(b, domain.BatchStatusCompleted); err != nil {
				return err
			}
			b.CompletedAt = timePtr(now)
			b.UpdatedAt = now
			if err := r.Batches.Update(ctx, b); err != nil {
				return fmt.Errorf("failed to complete batch %s: %w", b.ID, err)
			}
			outcome.CompletedBatchIDs = append(outcome.CompletedBatchIDs, b.ID)
			log.add(domain.ActionBatchCompleted, domain.TargetBatch, b.ID, map[string]any{
				"assigneeId": b.AssigneeID,
				"totalItems": b.TotalItems,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncReviewVerdict(string(in.Decision))
	s.ctxLogger(ctx).Info("work item reviewed",
		zap.String("workItemId", itemID),
		zap.String("decision", string(in.Decision)),
		zap.Int("sequence", outcome.Verdict.Sequence),
		zap.Strings("completedBatches", outcome.CompletedBatchIDs),
	)
	return outcome, nil
}

func resolveCategories(ctx context.Context, r repository.Repos, ids []string) ([]domain.DefectCategory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	categories, err := r.DefectCategories.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve defect categories: %w", err)
	}

	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("%w: unknown defect category %q", domain.ErrValidation, id)
		}
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// StartReAnnotation sends a rejected item back to work. The membership loses
// its completed state and a Submitted batch returns to InProgress.
func (s *WorkflowService) StartReAnnotation(ctx context.Context, actor domain.Actor, membershipID string) (*domain.Membership, error) {
	membershipID, err := parseID("membership", membershipID)
	if err != nil {
		return nil, err
	}

	var membership *domain.Membership
	err = s.run(ctx, "start_reannotation", actor, func(r repository.Repos, log *activityLog) error {
		m, batch, err := loadSession(ctx, r, membershipID)
		if err != nil {
			return err
		}
		if err := requireAssignee(actor, batch); err != nil {
			return err
		}

		item, err := r.WorkItems.GetByID(ctx, m.WorkItemID)
		if err != nil {
			return wrapNotFound(err, "work item", m.WorkItemID)
		}
		if item.Status != domain.ItemStatusRejected {
			return fmt.Errorf("%w: can only re-annotate rejected items", domain.ErrValidation)
		}
		if err := transitionItem(ctx, r, item, domain.ItemStatusInProgress); err != nil {
			return err
		}

		now := s.now()
		m.Status = domain.MembershipStatusInProgress
		m.CompletedAt = nil
		if m.StartedAt == nil {
			m.StartedAt = timePtr(now)
		}
		if err := r.Memberships.Update(ctx, m); err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}

		rolledBack := false
		if batch.Status == domain.BatchStatusSubmitted {
			if err := transitionBatch(batch, domain.BatchStatusInProgress); err != nil {
				return err
			}
			batch.SubmittedAt = nil
			rolledBack = true
		}
		if _, err := s.recompute(ctx, r, batch); err != nil {
			return err
		}

		membership = m
		log.add(domain.ActionReAnnotation, domain.TargetMembership, m.ID, map[string]any{
			"batchId":         batch.ID,
			"workItemId":      m.WorkItemID,
			"batchRolledBack": rolledBack,
			"completedItems":  batch.CompletedItems,
			"totalItems":      batch.TotalItems,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// ListRejected returns the batch's rejected items with their latest verdict,
// most recently rejected first.
func (s *WorkflowService) ListRejected(ctx context.Context, actor domain.Actor, batchID string) ([]RejectedItem, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	batchID, err := parseID("batch", batchID)
	if err != nil {
		return nil, err
	}

	r := s.uow.Repos()
	batch, err := r.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, wrapNotFound(err, "batch", batchID)
	}
	if actor.ID != batch.AssigneeID && !actor.CanReview() {
		return nil, fmt.Errorf("%w: only the assignee or a reviewer may view the rework queue", domain.ErrForbidden)
	}

	memberships, err := r.Memberships.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	items, err := r.WorkItems.GetByIDs(ctx, membershipItemIDs(memberships))
	if err != nil {
		return nil, fmt.Errorf("failed to load work items: %w", err)
	}

	membershipOf := make(map[string]string, len(memberships))
	for _, m := range memberships {
		membershipOf[m.WorkItemID] = m.ID
	}

	rejected := make([]domain.WorkItem, 0)
	rejectedIDs := make([]string, 0)
	for _, item := range items {
		if item.Status == domain.ItemStatusRejected {
			rejected = append(rejected, item)
			rejectedIDs = append(rejectedIDs, item.ID)
		}
	}
	if len(rejected) == 0 {
		return []RejectedItem{}, nil
	}

	latest, err := r.Verdicts.LatestByWorkItems(ctx, rejectedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest verdicts: %w", err)
	}

	out := make([]RejectedItem, 0, len(rejected))
	for _, item := range rejected {
		entry := RejectedItem{
			MembershipID:     membershipOf[item.ID],
			WorkItem:         item,
			DefectCategories: []string{},
		}
		if v, ok := latest[item.ID]; ok {
			if v.Feedback != nil {
				entry.Feedback = *v.Feedback
			}
			entry.DefectCategories = v.CategoryNames()
			entry.ReviewerID = v.ReviewerID
			entry.RejectedAt = v.CreatedAt
		}
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RejectedAt.Equal(out[j].RejectedAt) {
			return out[i].RejectedAt.After(out[j].RejectedAt)
		}
		return out[i].WorkItem.ID < out[j].WorkItem.ID
	})
	return out, nil
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
