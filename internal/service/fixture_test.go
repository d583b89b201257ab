package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/kursadbilgin/labelflow/internal/observability"
	"github.com/kursadbilgin/labelflow/internal/testsupport/memstore"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	managerActor   = domain.Actor{ID: "manager-1", Role: domain.RoleManager}
	annotatorActor = domain.Actor{ID: "annotator-1", Role: domain.RoleAnnotator}
	outsiderActor  = domain.Actor{ID: "annotator-2", Role: domain.RoleAnnotator}
	reviewerActor  = domain.Actor{ID: "reviewer-1", Role: domain.RoleReviewer}
)

type workflowFixture struct {
	store    *memstore.Store
	svc      *WorkflowService
	recorder *captureRecorder
	metrics  *observability.Metrics

	projectID  string
	datasetID  string
	categories []domain.DefectCategory
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	store := memstore.New()
	recorder := &captureRecorder{}
	metrics := observability.NewMetrics()

	svc, err := NewWorkflowService(store, recorder, metrics, zap.NewNop())
	require.NoError(t, err)

	var tick atomic.Int64
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}

	f := &workflowFixture{store: store, svc: svc, recorder: recorder, metrics: metrics}
	f.projectID, f.datasetID = f.seedProject(t)

	f.categories = []domain.DefectCategory{
		{ID: uuid.NewString(), Name: "loose-box"},
		{ID: uuid.NewString(), Name: "missing-object"},
	}
	store.SeedCategories(f.categories...)
	return f
}

func (f *workflowFixture) seedProject(t *testing.T) (string, string) {
	t.Helper()

	ctx := context.Background()
	r := f.store.Repos()
	project := &domain.Project{ID: uuid.NewString(), Name: "street scenes"}
	require.NoError(t, r.Projects.Create(ctx, project))
	dataset := &domain.Dataset{ID: uuid.NewString(), ProjectID: project.ID, Name: "batch-01"}
	require.NoError(t, r.Datasets.Create(ctx, dataset))
	return project.ID, dataset.ID
}

func (f *workflowFixture) seedItems(t *testing.T, datasetID string, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		item := &domain.WorkItem{
			ID:        uuid.NewString(),
			DatasetID: datasetID,
			FileName:  "frame.jpg",
			Status:    domain.ItemStatusPending,
		}
		require.NoError(t, f.store.Repos().WorkItems.Create(context.Background(), item))
		ids = append(ids, item.ID)
	}
	return ids
}

func (f *workflowFixture) newBatch(t *testing.T, itemIDs ...string) *domain.Batch {
	t.Helper()

	batch, result, err := f.svc.CreateBatch(context.Background(), managerActor, CreateBatchInput{
		ProjectID:  f.projectID,
		Name:       "week 10",
		AssigneeID: annotatorActor.ID,
		ItemIDs:    itemIDs,
	})
	require.NoError(t, err)
	require.Equal(t, len(itemIDs), result.AssignedCount)
	return batch
}

func (f *workflowFixture) batch(t *testing.T, id string) domain.Batch {
	t.Helper()
	b, err := f.store.Repos().Batches.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *b
}

func (f *workflowFixture) item(t *testing.T, id string) domain.WorkItem {
	t.Helper()
	item, err := f.store.Repos().WorkItems.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *item
}

func (f *workflowFixture) membership(t *testing.T, batchID, itemID string) domain.Membership {
	t.Helper()
	m, err := f.store.Repos().Memberships.GetByBatchAndItem(context.Background(), batchID, itemID)
	require.NoError(t, err)
	return *m
}

// work starts and completes the item's membership as the assignee.
func (f *workflowFixture) work(t *testing.T, batchID, itemID string) domain.Membership {
	t.Helper()
	ctx := context.Background()
	m := f.membership(t, batchID, itemID)
	_, err := f.svc.Start(ctx, annotatorActor, m.ID)
	require.NoError(t, err)
	done, err := f.svc.Complete(ctx, annotatorActor, m.ID)
	require.NoError(t, err)
	return *done
}

func (f *workflowFixture) reject(t *testing.T, itemID string) {
	t.Helper()
	feedback := "box too loose"
	_, err := f.svc.Review(context.Background(), reviewerActor, ReviewInput{
		WorkItemID:        itemID,
		Decision:          domain.DecisionRejected,
		Feedback:          &feedback,
		DefectCategoryIDs: []string{f.categories[0].ID},
	})
	require.NoError(t, err)
}

func (f *workflowFixture) approve(t *testing.T, itemID string) *ReviewOutcome {
	t.Helper()
	outcome, err := f.svc.Review(context.Background(), reviewerActor, ReviewInput{
		WorkItemID: itemID,
		Decision:   domain.DecisionApproved,
	})
	require.NoError(t, err)
	return outcome
}

// requireInvariants checks the counter and status-pair invariants of a batch.
func (f *workflowFixture) requireInvariants(t *testing.T, batchID string) {
	t.Helper()

	ctx := context.Background()
	r := f.store.Repos()
	b := f.batch(t, batchID)
	require.NoError(t, b.CheckCounters())

	memberships, err := r.Memberships.ListByBatch(ctx, batchID)
	require.NoError(t, err)
	require.Equal(t, len(memberships), b.TotalItems)

	completed := 0
	for _, m := range memberships {
		if m.Status == domain.MembershipStatusCompleted {
			completed++
		}
		item := f.item(t, m.WorkItemID)
		require.Truef(t, domain.ConsistentPair(item.Status, m.Status),
			"item %s is %s but membership is %s", item.ID, item.Status, m.Status)
	}
	require.Equal(t, completed, b.CompletedItems)
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
	err     error
}

func (r *captureRecorder) Record(_ context.Context, entry domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *captureRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

var errRecorderDown = errors.New("broker unavailable")
