package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

// ActivityRecorder receives one entry per state change. It is called after the
// unit of work commits and its failures never fail the operation.
type ActivityRecorder interface {
	Record(ctx context.Context, entry domain.ActivityEntry) error
}

// WorkflowService coordinates assignment, work sessions, progress and review
// for batches of work items.
type WorkflowService struct {
	uow      repository.UnitOfWork
	recorder ActivityRecorder
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewWorkflowService(
	uow repository.UnitOfWork,
	recorder ActivityRecorder,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*WorkflowService, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkflowService{
		uow:      uow,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// activityLog buffers entries produced inside a unit of work until it commits.
type activityLog struct {
	actorID string
	at      time.Time
	entries []domain.ActivityEntry
}

func newActivityLog(actor domain.Actor, at time.Time) *activityLog {
	return &activityLog{actorID: actor.ID, at: at}
}

func (l *activityLog) add(action, targetType, targetID string, detail map[string]any) {
	l.entries = append(l.entries, domain.ActivityEntry{
		ID:         uuid.NewString(),
		ActorID:    l.actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
		OccurredAt: l.at,
	})
}

func (l *activityLog) reset() {
	l.entries = l.entries[:0]
}

func publishActivity(
	ctx context.Context,
	recorder ActivityRecorder,
	metrics *observability.Metrics,
	logger *zap.Logger,
	log *activityLog,
) {
	if recorder == nil || log == nil {
		return
	}
	for _, entry := range log.entries {
		if err := recorder.Record(ctx, entry); err != nil {
			metrics.IncActivityPublishFailure()
			observability.WithContextLogger(logger, ctx).Warn("failed to record activity",
				zap.String("action", entry.Action),
				zap.String("targetType", entry.TargetType),
				zap.String("targetId", entry.TargetID),
				zap.Error(err),
			)
		}
	}
}

// run executes fn in one unit of work, then publishes buffered activity and
// counts the outcome.
func (s *WorkflowService) run(
	ctx context.Context,
	operation string,
	actor domain.Actor,
	fn func(r repository.Repos, log *activityLog) error,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := actor.Validate(); err != nil {
		s.metrics.ObserveTransition(operation, err)
		return err
	}

	log := newActivityLog(actor, s.now())
	err := s.uow.Do(ctx, func(r repository.Repos) error {
		log.reset()
		return fn(r, log)
	})
	s.metrics.ObserveTransition(operation, err)
	if err != nil {
		return err
	}

	publishActivity(ctx, s.recorder, s.metrics, s.logger, log)
	return nil
}

func (s *WorkflowService) ctxLogger(ctx context.Context) *zap.Logger {
	return observability.WithContextLogger(s.logger, ctx)
}

// recompute rebuilds the batch counters from its memberships and persists them.
func (s *WorkflowService) recompute(ctx context.Context, r repository.Repos, batch *domain.Batch) (bool, error) {
	total, completed, err := r.Memberships.CountByBatch(ctx, batch.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count memberships for batch %s: %w", batch.ID, err)
	}

	changed := batch.TotalItems != total || batch.CompletedItems != completed
	batch.TotalItems = total
	batch.CompletedItems = completed
	if err := batch.CheckCounters(); err != nil {
		return false, err
	}

	batch.UpdatedAt = s.now()
	if err := r.Batches.Update(ctx, batch); err != nil {
		return false, fmt.Errorf("failed to update batch %s: %w", batch.ID, err)
	}
	return changed, nil
}

// releaseMemberships deletes memberships, resets their items to Pending and
// drops the marks drawn on them, so the next assignee starts clean. It is
// shared by item removal and batch deletion.
func releaseMemberships(ctx context.Context, r repository.Repos, memberships []domain.Membership) error {
	if len(memberships) == 0 {
		return nil
	}

	membershipIDs := make([]string, 0, len(memberships))
	itemIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		membershipIDs = append(membershipIDs, m.ID)
		itemIDs = append(itemIDs, m.WorkItemID)
	}

	if err := r.Memberships.DeleteByIDs(ctx, membershipIDs); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	if _, err := r.WorkItems.BulkUpdateStatus(ctx, sortedUnique(itemIDs), domain.ItemStatusPending); err != nil {
		return fmt.Errorf("failed to reset work items to pending: %w", err)
	}
	if _, err := r.LabelMarks.DeleteByWorkItems(ctx, itemIDs); err != nil {
		return fmt.Errorf("failed to drop marks of released items: %w", err)
	}
	return nil
}

func transitionItem(ctx context.Context, r repository.Repos, item *domain.WorkItem, to domain.ItemStatus) error {
	if !domain.CanTransitionItem(item.Status, to) {
		return fmt.Errorf("%w: work item %s cannot move from %s to %s",
			domain.ErrValidation, item.ID, item.Status.Label(), to.Label())
	}
	if err := r.WorkItems.TransitionStatus(ctx, item.ID, item.Status, to); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("%w: work item %s changed concurrently", domain.ErrConflict, item.ID)
		}
		return err
	}
	item.Status = to
	return nil
}

func transitionBatch(batch *domain.Batch, to domain.BatchStatus) error {
	if !domain.CanTransitionBatch(batch.Status, to) {
		return fmt.Errorf("%w: batch %s cannot move from %s to %s",
			domain.ErrValidation, batch.ID, batch.Status.Label(), to.Label())
	}
	batch.Status = to
	return nil
}

func requireAssignee(actor domain.Actor, batch *domain.Batch) error {
	if actor.ID != batch.AssigneeID {
		return fmt.Errorf("%w: only the batch assignee may do this", domain.ErrForbidden)
	}
	return nil
}

// loadSession locks the membership's batch and re-reads the membership under the lock.
func loadSession(ctx context.Context, r repository.Repos, membershipID string) (*domain.Membership, *domain.Batch, error) {
	m, err := r.Memberships.GetByID(ctx, membershipID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "membership", membershipID)
	}
	batch, err := r.Batches.LockByID(ctx, m.BatchID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "batch", m.BatchID)
	}
	m, err = r.Memberships.GetByID(ctx, membershipID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "membership", membershipID)
	}
	return m, batch, nil
}

// allApproved reports whether every item of the batch is Approved.
func allApproved(ctx context.Context, r repository.Repos, batchID string) (bool, error) {
	memberships, err := r.Memberships.ListByBatch(ctx, batchID)
	if err != nil {
		return false, err
	}
	if len(memberships) == 0 {
		return false, nil
	}

	items, err := r.WorkItems.GetByIDs(ctx, membershipItemIDs(memberships))
	if err != nil {
		return false, err
	}
	if len(items) != len(memberships) {
		return false, nil
	}
	for _, item := range items {
		if item.Status != domain.ItemStatusApproved {
			return false, nil
		}
	}
	return true, nil
}

func membershipItemIDs(memberships []domain.Membership) []string {
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.WorkItemID)
	}
	return ids
}

func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return err
}

// parseID trims an id and requires it to be a UUID.
func parseID(kind, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s id is required", domain.ErrValidation, kind)
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return "", fmt.Errorf("%w: %s id %q is not a valid uuid", domain.ErrValidation, kind, value)
	}
	return trimmed, nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func requireManager(actor domain.Actor, action string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if !actor.CanManageBatches() {
		return fmt.Errorf("%w: only managers can %s", domain.ErrForbidden, action)
	}
	return nil
}
