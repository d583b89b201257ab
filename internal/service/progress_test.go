package service

import (
	"context"
	"testing"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestSubmitBatchWithIncompleteItems(t *testing.T) {
	t.Parallel()

	f := newWorkflowFixture(t)
	ids := f.seedItems(t, f.datasetID, 3)
	batch := f.newBatch(t, ids...)
	f.work(t, batch.ID, ids[0])

	_, err := f.svc.SubmitBatch(context.Background(), annotatorActor, batch.ID)
	require.ErrorIs(t, err, domain.ErrIncompleteItems)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Contains(t, err.Error(), "1/3 items completed")

	got := f.batch(t, batch.ID)
	require.Equal(t, domain.BatchStatusInProgress, got.Status)
	require.Nil(t, got.SubmittedAt)
}

func TestSubmitBatchRules(t *testing.T) {
	t.Parallel()

	f := newWorkflowFixture(t)
	item := f.seedItems(t, f.datasetID, 1)[0]
	full := f.newBatch(t, item)
	f.work(t, full.ID, item)
	empty := f.newBatch(t)

	_, err := f.svc.SubmitBatch(context.Background(), outsiderActor, full.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.SubmitBatch(context.Background(), annotatorActor, empty.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	submitted, err := f.svc.SubmitBatch(context.Background(), annotatorActor, full.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BatchStatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	_, err = f.svc.SubmitBatch(context.Background(), annotatorActor, full.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmitBatchAutoCompletesApprovedBatch(t *testing.T) {
	t.Parallel()

	f := newWorkflowFixture(t)
	ids := f.seedItems(t, f.datasetID, 2)
	batch := f.newBatch(t, ids...)
	for _, id := range ids {
		f.work(t, batch.ID, id)
		f.approve(t, id)
	}
	require.Equal(t, domain.BatchStatusInProgress, f.batch(t, batch.ID).Status)

	got, err := f.svc.SubmitBatch(context.Background(), annotatorActor, batch.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BatchStatusCompleted, got.Status)
	require.NotNil(t, got.SubmittedAt)
	require.NotNil(t, got.CompletedAt)

	actions := f.recorder.actions()
	require.Equal(t, []string{domain.ActionBatchSubmitted, domain.ActionBatchCompleted}, actions[len(actions)-2:])
}

func TestRecomputeRepairsDriftedCounters(t *testing.T) {
	t.Parallel()

	f := newWorkflowFixture(t)
	ids := f.seedItems(t, f.datasetID, 2)
	batch := f.newBatch(t, ids...)
	f.work(t, batch.ID, ids[0])

	drifted := f.batch(t, batch.ID)
	drifted.TotalItems = 7
	drifted.CompletedItems = 0
	require.NoError(t, f.store.Repos().Batches.Update(context.Background(), &drifted))

	got, err := f.svc.Recompute(context.Background(), managerActor, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalItems)
	require.Equal(t, 1, got.CompletedItems)
	f.requireInvariants(t, batch.ID)

	actions := f.recorder.actions()
	require.Equal(t, domain.ActionCountersRecomputed, actions[len(actions)-1])

	// A second pass finds nothing to repair and records nothing.
	_, err = f.svc.Recompute(context.Background(), annotatorActor, batch.ID)
	require.NoError(t, err)
	require.Len(t, f.recorder.actions(), len(actions))
}

func TestRecomputeRequiresAssigneeOrManager(t *testing.T) {
	t.Parallel()

	f := newWorkflowFixture(t)
	batch := f.newBatch(t)

	_, err := f.svc.Recompute(context.Background(), outsiderActor, batch.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}
