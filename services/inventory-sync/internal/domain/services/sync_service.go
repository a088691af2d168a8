package services

import (
	"context"
	"fmt"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

// SyncServiceInterface операции конвейера синхронизации, доступные транспорту
type SyncServiceInterface interface {
	TriggerSnapshot(ctx context.Context, warehouseID *int) (*TriggerResult, error)
	PollJobs(ctx context.Context) (*PollResult, error)
	IngestSnapshot(ctx context.Context, req IngestRequest) (*IngestOutcome, error)
	AbortSnapshot(ctx context.Context, snapshotID, reason string) (*AbortOutcome, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, int, error)
	GetJob(ctx context.Context, jobID string) (*models.SyncJob, error)
	InvalidateWarehouses(ctx context.Context) error
}

// IngestRequest ручной импорт файла снапшота
type IngestRequest struct {
	SnapshotURL string `json:"snapshot_url"`
	JobID       string `json:"job_id,omitempty"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
}

// IngestStats статистика импорта
type IngestStats struct {
	TotalRecords     int     `json:"total_records"`
	RecordsWritten   int     `json:"records_written"`
	BatchesProcessed int     `json:"batches_processed"`
	BatchesTotal     int     `json:"batches_total"`
	SKUsProcessed    int     `json:"skus_processed"`
	Warnings         int     `json:"warnings"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// IngestOutcome результат ручного импорта
type IngestOutcome struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	JobID     string      `json:"job_id,omitempty"`
	JobStatus string      `json:"job_status,omitempty"`
	Stats     IngestStats `json:"stats"`
	Errors    []string    `json:"errors,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// SyncService точка входа в конвейер синхронизации остатков
type SyncService struct {
	requester   *SnapshotRequester
	poller      *StatusPoller
	ingestion   *IngestionService
	aborter     *AbortService
	coordinator *JobCoordinator
	directory   *WarehouseDirectory
	logger      interfaces.LoggerPort
}

// NewSyncService создает SyncService
func NewSyncService(
	requester *SnapshotRequester,
	poller *StatusPoller,
	ingestion *IngestionService,
	aborter *AbortService,
	coordinator *JobCoordinator,
	directory *WarehouseDirectory,
	logger interfaces.LoggerPort,
) *SyncService {
	return &SyncService{
		requester:   requester,
		poller:      poller,
		ingestion:   ingestion,
		aborter:     aborter,
		coordinator: coordinator,
		directory:   directory,
		logger:      logger,
	}
}

var _ SyncServiceInterface = (*SyncService)(nil)

// TriggerSnapshot запрашивает снапшоты по складу или по всем активным складам
func (s *SyncService) TriggerSnapshot(ctx context.Context, warehouseID *int) (*TriggerResult, error) {
	return s.requester.RequestSnapshots(ctx, warehouseID)
}

// PollJobs выполняет один цикл опроса активных задач
func (s *SyncService) PollJobs(ctx context.Context) (*PollResult, error) {
	return s.poller.PollActiveJobs(ctx)
}

// AbortSnapshot отменяет снапшот
func (s *SyncService) AbortSnapshot(ctx context.Context, snapshotID, reason string) (*AbortOutcome, error) {
	return s.aborter.Abort(ctx, snapshotID, reason)
}

// ListJobs постраничный список задач
func (s *SyncService) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, int, error) {
	return s.coordinator.ListJobs(ctx, filter)
}

// GetJob задача по ID
func (s *SyncService) GetJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	return s.coordinator.Job(ctx, jobID)
}

// InvalidateWarehouses сбрасывает кэш реестра складов
func (s *SyncService) InvalidateWarehouses(ctx context.Context) error {
	return s.directory.Invalidate(ctx)
}

// IngestSnapshot импортирует файл по ссылке. Если указана задача, она переводится
// в processing и завершается по результату импорта
func (s *SyncService) IngestSnapshot(ctx context.Context, req IngestRequest) (*IngestOutcome, error) {
	job, err := s.resolveJob(ctx, req)
	if err != nil {
		return nil, err
	}

	jobID := ""
	if job != nil {
		jobID = job.ID
		ctx = interfaces.WithJobID(ctx, job.ID)
		ctx = interfaces.WithSnapshotID(ctx, job.SnapshotID)
	}

	result, ingestErr := s.ingestion.Ingest(ctx, req.SnapshotURL, jobID)

	outcome := &IngestOutcome{JobID: jobID}
	if result != nil {
		outcome.Stats = IngestStats{
			TotalRecords:     result.TotalRecords,
			RecordsWritten:   result.RecordsWritten,
			BatchesProcessed: result.BatchesProcessed,
			BatchesTotal:     result.BatchesTotal,
			SKUsProcessed:    result.SKUsProcessed,
			Warnings:         result.WarningCount,
			DurationSeconds:  result.Duration.Seconds(),
		}
		outcome.Errors = result.ErrorMessages()
		outcome.Warnings = result.WarningMessages()
	}

	if job != nil {
		status, err := s.coordinator.FinalizeIngestion(ctx, job.ID, result, ingestErr)
		if err != nil {
			s.logger.ErrorWithContext(ctx, "Не удалось завершить задачу после импорта",
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		} else {
			outcome.JobStatus = string(status)
		}
	}

	if ingestErr != nil {
		return nil, ingestErr
	}

	outcome.Success = result.Success()
	if outcome.Success {
		outcome.Message = fmt.Sprintf("Импортировано позиций: %d", result.RecordsWritten)
	} else {
		outcome.Message = fmt.Sprintf("Импорт завершен с ошибками: %d из %d пакетов не записаны",
			len(result.Errors), result.BatchesTotal)
	}
	return outcome, nil
}

// resolveJob находит задачу импорта и переводит ее в processing
func (s *SyncService) resolveJob(ctx context.Context, req IngestRequest) (*models.SyncJob, error) {
	var (
		job *models.SyncJob
		err error
	)
	switch {
	case req.JobID != "":
		job, err = s.coordinator.Job(ctx, req.JobID)
	case req.SnapshotID != "":
		job, err = s.coordinator.JobBySnapshot(ctx, req.SnapshotID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.SyncJobPending:
		claimed, err := s.coordinator.StartProcessing(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, fmt.Errorf("sync job %s is no longer pending: %w", job.ID, pkgerrors.ErrInvalidTransition)
		}
	case models.SyncJobProcessing:
		// повторный импорт допустим: запись идемпотентна
	default:
		return nil, fmt.Errorf("sync job %s is already %s: %w", job.ID, job.Status, pkgerrors.ErrInvalidTransition)
	}

	return job, nil
}
