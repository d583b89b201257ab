package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
)

type MembershipDetail struct {
	Membership domain.Membership
	ItemStatus domain.ItemStatus
	FileName   string
	// Consistent is false when the item and membership statuses have diverged.
	Consistent bool
}

type BatchDetail struct {
	Batch           domain.Batch
	ProgressPercent float64
	Memberships     []MembershipDetail
	// CounterIssue describes a counter invariant violation, if any.
	CounterIssue string
}

type ItemDetail struct {
	Item       domain.WorkItem
	Membership *domain.Membership
	Marks      []domain.LabelMark
	Verdicts   []domain.ReviewVerdict
}

type ProjectStats struct {
	ProjectID       string
	TotalItems      int
	ItemsByStatus   map[domain.ItemStatus]int
	BatchesByStatus map[domain.BatchStatus]int
	ApprovedItems   int
	RejectedItems   int
	ProgressPercent float64
	ApprovalRate    float64
}

func (s *WorkflowService) GetBatchDetail(ctx context.Context, actor domain.Actor, batchID string) (*BatchDetail, error) {
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
	if actor.Role == domain.RoleAnnotator && actor.ID != batch.AssigneeID {
		return nil, fmt.Errorf("%w: annotators can only view their own batches", domain.ErrForbidden)
	}

	memberships, err := r.Memberships.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	items, err := r.WorkItems.GetByIDs(ctx, membershipItemIDs(memberships))
	if err != nil {
		return nil, fmt.Errorf("failed to load work items: %w", err)
	}
	byID := make(map[string]domain.WorkItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	detail := &BatchDetail{
		Batch:           *batch,
		ProgressPercent: batch.ProgressPercent(),
		Memberships:     make([]MembershipDetail, 0, len(memberships)),
	}
	for _, m := range memberships {
		item := byID[m.WorkItemID]
		detail.Memberships = append(detail.Memberships, MembershipDetail{
			Membership: m,
			ItemStatus: item.Status,
			FileName:   item.FileName,
			Consistent: domain.ConsistentPair(item.Status, m.Status),
		})
	}
	if err := batch.CheckCounters(); err != nil {
		detail.CounterIssue = err.Error()
	} else if batch.TotalItems != len(memberships) {
		detail.CounterIssue = fmt.Sprintf("batch %s total %d does not match %d memberships", batch.ID, batch.TotalItems, len(memberships))
	}
	return detail, nil
}

func (s *WorkflowService) GetItemDetail(ctx context.Context, actor domain.Actor, itemID string) (*ItemDetail, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	itemID, err := parseID("work item", itemID)
	if err != nil {
		return nil, err
	}

	r := s.uow.Repos()
	item, err := r.WorkItems.GetByID(ctx, itemID)
	if err != nil {
		return nil, wrapNotFound(err, "work item", itemID)
	}

	memberships, err := r.Memberships.ListByWorkItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	marks, err := r.LabelMarks.ListByWorkItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list label marks: %w", err)
	}
	verdicts, err := r.Verdicts.ListByWorkItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}

	detail := &ItemDetail{Item: *item, Marks: marks, Verdicts: verdicts}
	if len(memberships) > 0 {
		m := memberships[len(memberships)-1]
		detail.Membership = &m
	}
	return detail, nil
}

// ListBatches pages through batches. Annotators only see their own.
func (s *WorkflowService) ListBatches(
	ctx context.Context,
	actor domain.Actor,
	params repository.BatchListParams,
) ([]domain.Batch, int64, error) {
	if err := actor.Validate(); err != nil {
		return nil, 0, err
	}
	if actor.Role == domain.RoleAnnotator {
		own := actor.ID
		params.AssigneeID = &own
	}
	return s.uow.Repos().Batches.List(ctx, params)
}

func (s *WorkflowService) ListItems(
	ctx context.Context,
	actor domain.Actor,
	params repository.ItemListParams,
) ([]domain.WorkItem, int64, error) {
	if err := actor.Validate(); err != nil {
		return nil, 0, err
	}
	return s.uow.Repos().WorkItems.List(ctx, params)
}

func (s *WorkflowService) GetProjectStats(ctx context.Context, actor domain.Actor, projectID string) (*ProjectStats, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	projectID, err := parseID("project", projectID)
	if err != nil {
		return nil, err
	}

	r := s.uow.Repos()
	if _, err := r.Projects.GetByID(ctx, projectID); err != nil {
		return nil, wrapNotFound(err, "project", projectID)
	}

	itemCounts, err := r.WorkItems.CountByStatus(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	batchCounts, err := r.Batches.CountByStatus(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}

	stats := &ProjectStats{
		ProjectID:       projectID,
		ItemsByStatus:   make(map[domain.ItemStatus]int, len(itemCounts)),
		BatchesByStatus: make(map[domain.BatchStatus]int, len(batchCounts)),
	}
	for _, c := range itemCounts {
		stats.ItemsByStatus[domain.ItemStatus(c.Status)] = c.Count
		stats.TotalItems += c.Count
	}
	for _, c := range batchCounts {
		stats.BatchesByStatus[domain.BatchStatus(c.Status)] = c.Count
	}

	stats.ApprovedItems = stats.ItemsByStatus[domain.ItemStatusApproved]
	stats.RejectedItems = stats.ItemsByStatus[domain.ItemStatusRejected]
	if stats.TotalItems > 0 {
		stats.ProgressPercent = float64(stats.ApprovedItems) / float64(stats.TotalItems) * 100
	}
	if reviewed := stats.ApprovedItems + stats.RejectedItems; reviewed > 0 {
		stats.ApprovalRate = float64(stats.ApprovedItems) / float64(reviewed) * 100
	}
	return stats, nil
}
