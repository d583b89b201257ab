package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"go.uber.org/zap"
)

type fakeBatchRecomputer struct {
	listFn      func(ctx context.Context, params repository.BatchListParams) ([]domain.Batch, int64, error)
	recomputeFn func(ctx context.Context, batchID string) (*domain.Batch, error)
}

func (f *fakeBatchRecomputer) ListBatches(ctx context.Context, actor domain.Actor, params repository.BatchListParams) ([]domain.Batch, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeBatchRecomputer) Recompute(ctx context.Context, actor domain.Actor, batchID string) (*domain.Batch, error) {
	if f.recomputeFn != nil {
		return f.recomputeFn(ctx, batchID)
	}
	return nil, errors.New("unexpected recompute")
}

func TestNewCounterAuditorAppliesDefaults(t *testing.T) {
	t.Parallel()

	auditor, err := NewCounterAuditor(&fakeBatchRecomputer{}, 0, 500, nil)
	if err != nil {
		t.Fatalf("NewCounterAuditor() error = %v", err)
	}
	if auditor.interval != defaultAuditInterval {
		t.Fatalf("interval = %s, want %s", auditor.interval, defaultAuditInterval)
	}
	if auditor.pageSize != defaultAuditPageSize {
		t.Fatalf("pageSize = %d, want %d", auditor.pageSize, defaultAuditPageSize)
	}

	if _, err := NewCounterAuditor(nil, time.Second, 10, nil); err == nil {
		t.Fatal("expected error for nil recomputer")
	}
}

func TestCounterAuditorRepairsDriftedBatches(t *testing.T) {
	t.Parallel()

	var listed []domain.BatchStatus
	recomputer := &fakeBatchRecomputer{
		listFn: func(ctx context.Context, params repository.BatchListParams) ([]domain.Batch, int64, error) {
			listed = append(listed, *params.Status)
			if *params.Status != domain.BatchStatusInProgress {
				return nil, 0, nil
			}
			return []domain.Batch{
				{ID: "b-ok", TotalItems: 2, CompletedItems: 1},
				{ID: "b-drift", TotalItems: 5, CompletedItems: 0},
				{ID: "b-gone", TotalItems: 1},
			}, 3, nil
		},
		recomputeFn: func(ctx context.Context, batchID string) (*domain.Batch, error) {
			switch batchID {
			case "b-ok":
				return &domain.Batch{ID: batchID, TotalItems: 2, CompletedItems: 1}, nil
			case "b-drift":
				return &domain.Batch{ID: batchID, TotalItems: 3, CompletedItems: 1}, nil
			default:
				return nil, domain.ErrNotFound
			}
		},
	}

	auditor, err := NewCounterAuditor(recomputer, time.Second, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCounterAuditor() error = %v", err)
	}

	repaired, err := auditor.audit(context.Background())
	if err != nil {
		t.Fatalf("audit() error = %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired = %d, want 1", repaired)
	}
	want := []domain.BatchStatus{domain.BatchStatusAssigned, domain.BatchStatusInProgress, domain.BatchStatusSubmitted}
	if len(listed) != len(want) {
		t.Fatalf("listed statuses = %v, want %v", listed, want)
	}
	for i := range want {
		if listed[i] != want[i] {
			t.Fatalf("listed statuses = %v, want %v", listed, want)
		}
	}
}

func TestCounterAuditorPagesThroughBatches(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	open := make([]domain.Batch, 0, 5)
	for i := 5; i >= 1; i-- {
		open = append(open, domain.Batch{
			ID:        fmt.Sprintf("b-%d", i),
			Status:    domain.BatchStatusAssigned,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	var cursors []*repository.BatchCursor
	recomputed := map[string]int{}
	recomputer := &fakeBatchRecomputer{
		listFn: func(ctx context.Context, params repository.BatchListParams) ([]domain.Batch, int64, error) {
			if *params.Status != domain.BatchStatusAssigned {
				return nil, 0, nil
			}
			cursors = append(cursors, params.After)
			page := make([]domain.Batch, 0, params.PageSize)
			for _, b := range open {
				if params.After != nil && !b.CreatedAt.Before(params.After.CreatedAt) {
					continue
				}
				if len(page) == params.PageSize {
					break
				}
				page = append(page, b)
			}
			return page, int64(len(open)), nil
		},
		recomputeFn: func(ctx context.Context, batchID string) (*domain.Batch, error) {
			recomputed[batchID]++
			if batchID == "b-5" {
				// A batch created mid-pass sorts ahead of the cursor and must
				// not shift the remaining pages.
				open = append([]domain.Batch{{
					ID:        "b-new",
					Status:    domain.BatchStatusAssigned,
					CreatedAt: base.Add(time.Hour),
				}}, open...)
			}
			return &domain.Batch{ID: batchID}, nil
		},
	}

	auditor, err := NewCounterAuditor(recomputer, time.Second, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCounterAuditor() error = %v", err)
	}
	if _, err := auditor.audit(context.Background()); err != nil {
		t.Fatalf("audit() error = %v", err)
	}

	if len(cursors) != 3 {
		t.Fatalf("pages = %d, want 3", len(cursors))
	}
	if cursors[0] != nil {
		t.Fatalf("first page cursor = %+v, want nil", cursors[0])
	}
	if cursors[1].ID != "b-4" || cursors[2].ID != "b-2" {
		t.Fatalf("cursors = %+v, %+v; want b-4 then b-2", cursors[1], cursors[2])
	}
	for _, id := range []string{"b-1", "b-2", "b-3", "b-4", "b-5"} {
		if recomputed[id] != 1 {
			t.Fatalf("batch %s recomputed %d times, want 1", id, recomputed[id])
		}
	}
	if recomputed["b-new"] != 0 {
		t.Fatal("batch created during the pass should wait for the next one")
	}
}

func TestCounterAuditorListError(t *testing.T) {
	t.Parallel()

	recomputer := &fakeBatchRecomputer{
		listFn: func(ctx context.Context, params repository.BatchListParams) ([]domain.Batch, int64, error) {
			return nil, 0, errors.New("db unavailable")
		},
	}
	auditor, err := NewCounterAuditor(recomputer, time.Second, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCounterAuditor() error = %v", err)
	}
	if _, err := auditor.audit(context.Background()); err == nil {
		t.Fatal("expected audit() error")
	}
}

func TestCounterAuditorStartReturnsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auditor, err := NewCounterAuditor(&fakeBatchRecomputer{}, time.Second, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCounterAuditor() error = %v", err)
	}
	if err := auditor.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestCounterAuditorAgainstWorkflow(t *testing.T) {
	t.Parallel()

	f := newWorkflowFixture(t)
	ids := f.seedItems(t, f.datasetID, 2)
	batch := f.newBatch(t, ids...)

	drifted := f.batch(t, batch.ID)
	drifted.CompletedItems = 2
	if err := f.store.Repos().Batches.Update(context.Background(), &drifted); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	auditor, err := NewCounterAuditor(f.svc, time.Second, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCounterAuditor() error = %v", err)
	}
	repaired, err := auditor.audit(context.Background())
	if err != nil {
		t.Fatalf("audit() error = %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired = %d, want 1", repaired)
	}
	if got := f.batch(t, batch.ID).CompletedItems; got != 0 {
		t.Fatalf("completedItems = %d, want 0", got)
	}
}
