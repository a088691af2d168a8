package storage

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestMemoryUpsertCoalescesBinID(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.UpsertPositions(ctx, []models.InventoryPosition{
		{SKU: "SKU1", WarehouseID: 1, BinName: "A-01", BinID: intPtr(10), Quantity: 5},
	}))
	require.NoError(t, store.UpsertPositions(ctx, []models.InventoryPosition{
		{SKU: "SKU1", WarehouseID: 1, BinName: "A-01", BinID: nil, Quantity: 7},
	}))

	positions, err := store.ListPositions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 7, positions[0].Quantity)
	require.NotNil(t, positions[0].BinID)
	assert.Equal(t, 10, *positions[0].BinID)
}

func TestMemoryUpsertLastInBatchWins(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.UpsertPositions(ctx, []models.InventoryPosition{
		{SKU: "SKU1", WarehouseID: 1, BinName: "A-01", Quantity: 5},
		{SKU: "SKU1", WarehouseID: 1, BinName: "A-01", Quantity: 9},
	}))

	positions, err := store.ListPositions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 9, positions[0].Quantity)
}

func TestMemoryTransitionIsConditional(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateJob(ctx, &models.SyncJob{
		ID: "job-1", SnapshotID: "snap-1", WarehouseID: 1, Status: models.SyncJobPending, CreatedAt: created,
	}))

	startedAt := created.Add(time.Minute)
	ok, err := store.TransitionJob(ctx, "job-1", []models.SyncJobStatus{models.SyncJobPending},
		models.JobUpdate{Status: models.SyncJobProcessing, At: startedAt})
	require.NoError(t, err)
	assert.True(t, ok)

	// второй захват той же задачи не проходит
	ok, err = store.TransitionJob(ctx, "job-1", []models.SyncJobStatus{models.SyncJobPending},
		models.JobUpdate{Status: models.SyncJobProcessing, At: startedAt.Add(time.Minute)})
	require.NoError(t, err)
	assert.False(t, ok)

	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobProcessing, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.True(t, job.StartedAt.Equal(startedAt))
	assert.Nil(t, job.CompletedAt)

	total, processed := 10, 10
	ok, err = store.TransitionJob(ctx, "job-1", models.SourcesFor(models.SyncJobCompleted), models.JobUpdate{
		Status: models.SyncJobCompleted, TotalItems: &total, ProcessedItems: &processed, At: startedAt.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	job, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 10, job.TotalItems)
	require.NotNil(t, job.CompletedAt)

	// терминальное состояние не меняется
	ok, err = store.TransitionJob(ctx, "job-1", models.SourcesFor(models.SyncJobFailed),
		models.JobUpdate{Status: models.SyncJobFailed, At: time.Now()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryListJobsOrderingAndPaging(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateJob(ctx, &models.SyncJob{
			ID: id, SnapshotID: "snap-" + id, Status: models.SyncJobPending, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.CreateJob(ctx, &models.SyncJob{
		ID: "d", SnapshotID: "snap-d", Status: models.SyncJobCompleted, CreatedAt: base.Add(time.Hour),
	}))

	oldest, total, err := store.ListJobs(ctx, models.JobFilter{Statuses: models.ActiveStatuses, OldestFirst: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, oldest, 3)
	assert.Equal(t, "a", oldest[0].ID)
	assert.Equal(t, "c", oldest[2].ID)

	page, total, err := store.ListJobs(ctx, models.JobFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
}

func TestMemoryNotFound(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	_, err := store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = store.GetJobBySnapshotID(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = store.GetWarehouse(ctx, 7)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestMemoryWarehouses(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.SaveWarehouse(ctx, models.Warehouse{ID: 2, Name: "Второй", Active: true}))
	require.NoError(t, store.SaveWarehouse(ctx, models.Warehouse{ID: 1, Name: "Первый", Active: true}))
	require.NoError(t, store.SaveWarehouse(ctx, models.Warehouse{ID: 3, Name: "Архив", Active: false}))

	active, err := store.ListWarehouses(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].ID)

	all, err := store.ListWarehouses(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
