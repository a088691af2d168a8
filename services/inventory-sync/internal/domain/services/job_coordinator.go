package services

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-inventory/pkg/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
	"github.com/google/uuid"
)

// JobCoordinator владеет жизненным циклом задач синхронизации.
// Каждый переход выполняется условным обновлением в хранилище, поэтому
// два конкурирующих опроса не могут одновременно захватить одну задачу
type JobCoordinator struct {
	store  JobStore
	events EventPublisher
	logger interfaces.LoggerPort

	// Now источник времени, подменяется в тестах
	Now func() time.Time
}

// NewJobCoordinator создает координатор задач. events может быть nil
func NewJobCoordinator(store JobStore, events EventPublisher, logger interfaces.LoggerPort) *JobCoordinator {
	return &JobCoordinator{
		store:  store,
		events: events,
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreatePendingJob регистрирует задачу для только что запрошенного снапшота
func (c *JobCoordinator) CreatePendingJob(ctx context.Context, snapshotID, requestID string, warehouseID int) (*models.SyncJob, error) {
	if snapshotID == "" {
		return nil, fmt.Errorf("snapshot id is required")
	}

	job := &models.SyncJob{
		ID:          uuid.New().String(),
		SnapshotID:  snapshotID,
		RequestID:   requestID,
		WarehouseID: warehouseID,
		Status:      models.SyncJobPending,
		CreatedAt:   c.Now(),
	}

	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}

	metrics.JobTransitions.WithLabelValues(string(models.SyncJobPending)).Inc()
	c.logger.InfoWithContext(ctx, "Создана задача синхронизации остатков",
		interfaces.LogField{Key: "job_id", Value: job.ID},
		interfaces.LogField{Key: "snapshot_id", Value: snapshotID},
		interfaces.LogField{Key: "warehouse_id", Value: warehouseID},
	)
	c.publish(ctx, pkgmodels.SyncJobCreatedEvent, job)

	return job, nil
}

// StartProcessing атомарно переводит задачу pending -> processing.
// false означает, что задачу уже захватил другой процесс или она не в pending
func (c *JobCoordinator) StartProcessing(ctx context.Context, jobID string) (bool, error) {
	claimed, err := c.store.TransitionJob(ctx, jobID,
		[]models.SyncJobStatus{models.SyncJobPending},
		models.JobUpdate{Status: models.SyncJobProcessing, At: c.Now()},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim sync job %s: %w", jobID, err)
	}
	if claimed {
		metrics.JobTransitions.WithLabelValues(string(models.SyncJobProcessing)).Inc()
		c.logger.WithJob(jobID).Info("Задача переведена в обработку")
	}
	return claimed, nil
}

// ReportProgress сохраняет промежуточные счетчики задачи в processing
func (c *JobCoordinator) ReportProgress(ctx context.Context, jobID string, processed, total int) error {
	if err := c.store.UpdateJobProgress(ctx, jobID, processed, total); err != nil {
		return fmt.Errorf("failed to update progress of sync job %s: %w", jobID, err)
	}
	return nil
}

// CompleteJob завершает задачу с итоговыми счетчиками
func (c *JobCoordinator) CompleteJob(ctx context.Context, jobID string, total, processed int) error {
	return c.finish(ctx, jobID, models.JobUpdate{
		Status:         models.SyncJobCompleted,
		TotalItems:     &total,
		ProcessedItems: &processed,
	})
}

// CompleteJobWithErrors завершает импорт, в котором часть пакетов не записалась.
// Такая задача считается проваленной, но счетчики сохраняются
func (c *JobCoordinator) CompleteJobWithErrors(ctx context.Context, jobID string, total, processed int, message string) error {
	return c.finish(ctx, jobID, models.JobUpdate{
		Status:         models.SyncJobFailed,
		ErrorMessage:   &message,
		TotalItems:     &total,
		ProcessedItems: &processed,
	})
}

// FailJob переводит задачу в failed с причиной
func (c *JobCoordinator) FailJob(ctx context.Context, jobID, message string) error {
	return c.finish(ctx, jobID, models.JobUpdate{
		Status:       models.SyncJobFailed,
		ErrorMessage: &message,
	})
}

// CancelJob переводит задачу в cancelled. Причина сохраняется в error_message
func (c *JobCoordinator) CancelJob(ctx context.Context, jobID, reason string) error {
	return c.finish(ctx, jobID, models.JobUpdate{
		Status:       models.SyncJobCancelled,
		ErrorMessage: &reason,
	})
}

// finish выполняет переход в терминальное состояние и публикует событие
func (c *JobCoordinator) finish(ctx context.Context, jobID string, update models.JobUpdate) error {
	update.At = c.Now()

	applied, err := c.store.TransitionJob(ctx, jobID, models.SourcesFor(update.Status), update)
	if err != nil {
		return fmt.Errorf("failed to move sync job %s to %s: %w", jobID, update.Status, err)
	}
	if !applied {
		return fmt.Errorf("sync job %s -> %s: %w", jobID, update.Status, pkgerrors.ErrInvalidTransition)
	}

	metrics.JobTransitions.WithLabelValues(string(update.Status)).Inc()

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		// Переход уже зафиксирован, без события можно обойтись
		c.logger.WarnWithContext(ctx, "Не удалось перечитать задачу после перехода",
			interfaces.LogField{Key: "job_id", Value: jobID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil
	}

	fields := []interface{}{
		interfaces.LogField{Key: "status", Value: job.Status},
		interfaces.LogField{Key: "processed_items", Value: job.ProcessedItems},
		interfaces.LogField{Key: "total_items", Value: job.TotalItems},
	}
	if job.ErrorMessage != "" {
		fields = append(fields, interfaces.LogField{Key: "error_message", Value: job.ErrorMessage})
	}
	c.logger.WithJob(jobID).Info("Задача синхронизации завершена", fields...)

	switch update.Status {
	case models.SyncJobCompleted:
		c.publish(ctx, pkgmodels.SyncJobCompletedEvent, job)
	case models.SyncJobFailed:
		c.publish(ctx, pkgmodels.SyncJobFailedEvent, job)
	case models.SyncJobCancelled:
		c.publish(ctx, pkgmodels.SyncJobCancelledEvent, job)
	}

	return nil
}

// FinalizeIngestion переводит задачу в итоговое состояние по результату импорта.
// ingestErr - сбой всего импорта (скачивание, разбор), result может быть частичным
func (c *JobCoordinator) FinalizeIngestion(ctx context.Context, jobID string, result *IngestionResult, ingestErr error) (models.SyncJobStatus, error) {
	switch {
	case ingestErr != nil:
		if err := c.FailJob(ctx, jobID, ingestErr.Error()); err != nil {
			return "", err
		}
		return models.SyncJobFailed, nil

	case result != nil && !result.Success():
		if err := c.CompleteJobWithErrors(ctx, jobID, result.TotalRecords, result.RecordsWritten, result.Err().Error()); err != nil {
			return "", err
		}
		return models.SyncJobFailed, nil

	default:
		total, written := 0, 0
		if result != nil {
			total, written = result.TotalRecords, result.RecordsWritten
		}
		if err := c.CompleteJob(ctx, jobID, total, written); err != nil {
			return "", err
		}
		return models.SyncJobCompleted, nil
	}
}

// ActiveJobs возвращает задачи pending и processing, старые первыми
func (c *JobCoordinator) ActiveJobs(ctx context.Context) ([]*models.SyncJob, error) {
	jobs, _, err := c.store.ListJobs(ctx, models.JobFilter{
		Statuses:    models.ActiveStatuses,
		OldestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active sync jobs: %w", err)
	}
	return jobs, nil
}

// LatestPendingJob возвращает самую свежую задачу в pending или errors.ErrNotFound
func (c *JobCoordinator) LatestPendingJob(ctx context.Context) (*models.SyncJob, error) {
	jobs, _, err := c.store.ListJobs(ctx, models.JobFilter{
		Statuses: []models.SyncJobStatus{models.SyncJobPending},
		Limit:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find pending sync job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, &pkgerrors.NotFoundError{Entity: "pending sync job"}
	}
	return jobs[0], nil
}

// Job возвращает задачу по ID
func (c *JobCoordinator) Job(ctx context.Context, jobID string) (*models.SyncJob, error) {
	return c.store.GetJob(ctx, jobID)
}

// JobBySnapshot возвращает задачу по ID снапшота
func (c *JobCoordinator) JobBySnapshot(ctx context.Context, snapshotID string) (*models.SyncJob, error) {
	return c.store.GetJobBySnapshotID(ctx, snapshotID)
}

// ListJobs постраничный список задач, новые первыми
func (c *JobCoordinator) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, int, error) {
	return c.store.ListJobs(ctx, filter)
}

// publish отправляет событие о задаче; ошибка публикации не влияет на переход
func (c *JobCoordinator) publish(ctx context.Context, eventType string, job *models.SyncJob) {
	if c.events == nil {
		return
	}

	event := pkgmodels.SyncJobEvent{
		EventType:      eventType,
		JobID:          job.ID,
		SnapshotID:     job.SnapshotID,
		WarehouseID:    job.WarehouseID,
		Status:         string(job.Status),
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		ErrorMessage:   job.ErrorMessage,
		OccurredAt:     c.Now(),
	}

	if err := c.events.PublishJobEvent(ctx, event); err != nil {
		c.logger.WarnWithContext(ctx, "Не удалось опубликовать событие задачи",
			interfaces.LogField{Key: "event_type", Value: eventType},
			interfaces.LogField{Key: "job_id", Value: job.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}
