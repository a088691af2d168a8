package services

import (
	"context"
	"testing"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	pkgmodels "github.com/athebyme/gomarket-inventory/pkg/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.coordinator.CreatePendingJob(ctx, "snap-1", "req-1", 7)
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobPending, job.Status)
	assert.Equal(t, f.now, job.CreatedAt)

	claimed, err := f.coordinator.StartProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = f.coordinator.StartProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "повторный захват не должен пройти")

	require.NoError(t, f.coordinator.CompleteJob(ctx, job.ID, 12, 12))

	stored := f.job(t, job.ID)
	assert.Equal(t, models.SyncJobCompleted, stored.Status)
	assert.Equal(t, 12, stored.TotalItems)
	assert.Equal(t, 12, stored.ProcessedItems)
	assert.NotNil(t, stored.CompletedAt)

	assert.Equal(t, []string{pkgmodels.SyncJobCreatedEvent, pkgmodels.SyncJobCompletedEvent}, f.events.types())
}

func TestCoordinatorRejectsTransitionFromTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.coordinator.CreatePendingJob(ctx, "snap-1", "", 1)
	require.NoError(t, err)
	require.NoError(t, f.coordinator.FailJob(ctx, job.ID, "boom"))

	err = f.coordinator.CompleteJob(ctx, job.ID, 1, 1)
	require.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)

	err = f.coordinator.CancelJob(ctx, job.ID, "late")
	require.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)

	stored := f.job(t, job.ID)
	assert.Equal(t, models.SyncJobFailed, stored.Status)
	assert.Equal(t, "boom", stored.ErrorMessage)
}

func TestCoordinatorCompleteRequiresProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.coordinator.CreatePendingJob(ctx, "snap-1", "", 1)
	require.NoError(t, err)

	err = f.coordinator.CompleteJob(ctx, job.ID, 1, 1)
	require.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
	assert.Equal(t, models.SyncJobPending, f.job(t, job.ID).Status)
}

func TestCoordinatorRequiresSnapshotID(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.CreatePendingJob(context.Background(), "", "", 1)
	require.Error(t, err)
}

func TestFinalizeIngestionWithFailedBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.coordinator.CreatePendingJob(ctx, "snap-1", "", 1)
	require.NoError(t, err)
	_, err = f.coordinator.StartProcessing(ctx, job.ID)
	require.NoError(t, err)

	result := &IngestionResult{
		TotalRecords:     10,
		RecordsWritten:   8,
		BatchesTotal:     5,
		BatchesProcessed: 4,
		Errors:           []pkgerrors.BatchFailure{{BatchIndex: 3, Records: 2, Err: assert.AnError}},
	}

	status, err := f.coordinator.FinalizeIngestion(ctx, job.ID, result, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobFailed, status)

	stored := f.job(t, job.ID)
	assert.Equal(t, models.SyncJobFailed, stored.Status)
	assert.Equal(t, 10, stored.TotalItems)
	assert.Equal(t, 8, stored.ProcessedItems)
	assert.Contains(t, stored.ErrorMessage, "1 of 5 batches failed")
}

func TestLatestPendingJobNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.LatestPendingJob(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
