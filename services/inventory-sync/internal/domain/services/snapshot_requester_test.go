package services

import (
	"context"
	"net/http"
	"testing"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	pkgmodels "github.com/athebyme/gomarket-inventory/pkg/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/codec"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSnapshotsCreatesPendingJobPerActiveWarehouse(t *testing.T) {
	f := newFixture(t)
	f.addWarehouse(t, 1, "Москва", true)
	f.addWarehouse(t, 2, "Казань", true)
	f.addWarehouse(t, 3, "Тверь", true)
	f.addWarehouse(t, 4, "Архив", false)

	result, err := f.service.TriggerSnapshot(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.TotalWarehouses)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailCount)
	require.Len(t, result.CreatedJobs, 3)
	for _, job := range result.CreatedJobs {
		assert.Equal(t, models.SyncJobPending, job.Status)
		assert.NotEmpty(t, job.SnapshotID)
	}

	assert.Equal(t, []string{
		codec.EncodeWarehouse(1),
		codec.EncodeWarehouse(2),
		codec.EncodeWarehouse(3),
	}, f.upstream.Generated)

	jobs, total, err := f.store.ListJobs(context.Background(), models.JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 3)
	assert.Equal(t, []string{
		pkgmodels.SyncJobCreatedEvent,
		pkgmodels.SyncJobCreatedEvent,
		pkgmodels.SyncJobCreatedEvent,
	}, f.events.types())
}

func TestRequestSnapshotsContinuesAfterWarehouseFailure(t *testing.T) {
	f := newFixture(t)
	f.addWarehouse(t, 1, "Москва", true)
	f.addWarehouse(t, 2, "Казань", true)
	f.addWarehouse(t, 3, "Тверь", true)
	f.upstream.GenerateErrs[codec.EncodeWarehouse(2)] = &pkgerrors.UpstreamAPIError{
		Operation:  "generate snapshot",
		StatusCode: http.StatusInternalServerError,
		Message:    "boom",
	}

	result, err := f.service.TriggerSnapshot(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailCount)
	require.Len(t, result.Results, 3)
	assert.False(t, result.Results[1].Success)
	assert.Contains(t, result.Results[1].Error, "boom")
	assert.Len(t, result.CreatedJobs, 2)
}

func TestRequestSnapshotsFailsFastOnExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.addWarehouse(t, 1, "Москва", true)
	f.tokens.Err = &pkgerrors.AuthExpiredError{Source: "static", Detail: "expires in 1m"}

	result, err := f.service.TriggerSnapshot(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsAuthExpired(err))
	assert.Empty(t, f.upstream.Generated)
}

func TestRequestSnapshotsAbortsOnExpiredTokenMidway(t *testing.T) {
	f := newFixture(t)
	f.addWarehouse(t, 1, "Москва", true)
	f.addWarehouse(t, 2, "Казань", true)
	f.upstream.GenerateErrs[codec.EncodeWarehouse(1)] = &pkgerrors.AuthExpiredError{Source: "upstream", Detail: "401"}

	result, err := f.service.TriggerSnapshot(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsAuthExpired(err))
	require.NotNil(t, result)
	assert.Empty(t, result.CreatedJobs)
	assert.Empty(t, f.upstream.Generated)
}

func TestRequestSnapshotsForUnknownWarehouse(t *testing.T) {
	f := newFixture(t)
	id := 42

	result, err := f.service.TriggerSnapshot(context.Background(), &id)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Склад 42", result.Results[0].WarehouseName)
	require.Len(t, result.CreatedJobs, 1)
	assert.Equal(t, 42, result.CreatedJobs[0].WarehouseID)
}

func TestRequestSnapshotsWithoutWarehouses(t *testing.T) {
	f := newFixture(t)
	f.addWarehouse(t, 1, "Архив", false)

	result, err := f.service.TriggerSnapshot(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.TotalWarehouses)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, f.upstream.Generated)
}
