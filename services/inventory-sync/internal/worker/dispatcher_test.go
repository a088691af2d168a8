package worker

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSync struct {
	calls       []string
	warehouseID *int
	ingest      services.IngestRequest
	err         error
}

func (s *stubSync) TriggerSnapshot(_ context.Context, warehouseID *int) (*services.TriggerResult, error) {
	s.calls = append(s.calls, "trigger")
	s.warehouseID = warehouseID
	return &services.TriggerResult{Success: true, Message: "ok"}, s.err
}

func (s *stubSync) PollJobs(context.Context) (*services.PollResult, error) {
	s.calls = append(s.calls, "poll")
	if s.err != nil {
		return nil, s.err
	}
	return &services.PollResult{Success: true, Message: "ok"}, nil
}

func (s *stubSync) IngestSnapshot(_ context.Context, req services.IngestRequest) (*services.IngestOutcome, error) {
	s.calls = append(s.calls, "ingest")
	s.ingest = req
	return &services.IngestOutcome{Success: false, Message: "partial"}, s.err
}

func (s *stubSync) AbortSnapshot(context.Context, string, string) (*services.AbortOutcome, error) {
	s.calls = append(s.calls, "abort")
	return &services.AbortOutcome{Success: true, Message: "ok"}, s.err
}

func (s *stubSync) ListJobs(context.Context, models.JobFilter) ([]*models.SyncJob, int, error) {
	return nil, 0, nil
}

func (s *stubSync) GetJob(context.Context, string) (*models.SyncJob, error) {
	return nil, pkgerrors.ErrNotFound
}

func (s *stubSync) InvalidateWarehouses(context.Context) error {
	s.calls = append(s.calls, "invalidate")
	return s.err
}

func message(body string) *interfaces.Message {
	return &interfaces.Message{ID: "m-1", Topic: "inventory-sync-commands", Value: []byte(body)}
}

func TestDispatcherRoutesCommands(t *testing.T) {
	sync := &stubSync{}
	d := NewDispatcher(sync, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, message(`{"command_type":"trigger_snapshot","warehouse_id":5}`)))
	require.NoError(t, d.Handle(ctx, message(`{"command_type":"poll_jobs"}`)))
	require.NoError(t, d.Handle(ctx, message(`{"command_type":"ingest_snapshot","snapshot_url":"https://files/s.json","job_id":"job-1"}`)))
	require.NoError(t, d.Handle(ctx, message(`{"command_type":"abort_snapshot","snapshot_id":"snap-1"}`)))
	require.NoError(t, d.Handle(ctx, message(`{"command_type":"invalidate_warehouses"}`)))

	assert.Equal(t, []string{"trigger", "poll", "ingest", "abort", "invalidate"}, sync.calls)
	require.NotNil(t, sync.warehouseID)
	assert.Equal(t, 5, *sync.warehouseID)
	assert.Equal(t, "job-1", sync.ingest.JobID)
}

func TestDispatcherUnknownCommandIsDropped(t *testing.T) {
	sync := &stubSync{}
	d := NewDispatcher(sync, logger.NewNop())

	assert.NoError(t, d.Handle(context.Background(), message(`{"command_type":"reindex"}`)))
	assert.Empty(t, sync.calls)
}

func TestDispatcherErrors(t *testing.T) {
	d := NewDispatcher(&stubSync{}, logger.NewNop())
	assert.Error(t, d.Handle(context.Background(), message(`garbage`)))
	assert.Error(t, d.Handle(context.Background(), message(`{"command_type":"ingest_snapshot"}`)))

	failing := &stubSync{err: pkgerrors.ErrAuthExpired}
	d = NewDispatcher(failing, logger.NewNop())
	err := d.Handle(context.Background(), message(`{"command_type":"poll_jobs"}`))
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthExpired))
}
