package services

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

const (
	defaultAbortReason = "Отменено пользователем"
	softCancelNote     = "Внешняя система уже обрабатывает снапшот и может завершить его в фоне; задача отменена только локально"
)

// softCancelMarkers признаки ответа "отменять уже поздно"
var softCancelMarkers = []string{"already", "process", "cannot abort"}

// AbortOutcome результат отмены снапшота
type AbortOutcome struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	JobID      string `json:"job_id,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Note       string `json:"note,omitempty"`
}

// AbortService отменяет снапшоты во внешней системе и соответствующие задачи
type AbortService struct {
	upstream    UpstreamClient
	coordinator *JobCoordinator
	logger      interfaces.LoggerPort
}

// NewAbortService создает AbortService
func NewAbortService(upstream UpstreamClient, coordinator *JobCoordinator, logger interfaces.LoggerPort) *AbortService {
	return &AbortService{upstream: upstream, coordinator: coordinator, logger: logger}
}

// Abort отменяет снапшот snapshotID или, если он пуст, самую свежую pending задачу.
// Отсутствие подходящей задачи - пустой результат, а не ошибка
func (s *AbortService) Abort(ctx context.Context, snapshotID, reason string) (*AbortOutcome, error) {
	if reason == "" {
		reason = defaultAbortReason
	}

	job, err := s.findJob(ctx, snapshotID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return &AbortOutcome{
				Success:    true,
				Message:    "Нет ожидающих задач для отмены",
				SnapshotID: snapshotID,
			}, nil
		}
		return nil, err
	}

	ctx = interfaces.WithJobID(ctx, job.ID)
	ctx = interfaces.WithSnapshotID(ctx, job.SnapshotID)

	outcome := &AbortOutcome{
		JobID:      job.ID,
		SnapshotID: job.SnapshotID,
		Status:     string(job.Status),
	}

	if job.Status.IsTerminal() {
		outcome.Message = "Задача уже завершена, отменять нечего"
		return outcome, nil
	}

	_, upstreamErr := s.upstream.AbortSnapshot(ctx, job.SnapshotID, reason)
	if upstreamErr != nil {
		if pkgerrors.IsAuthExpired(upstreamErr) || !isSoftCancel(upstreamErr) {
			s.logger.ErrorWithContext(ctx, "Внешняя система отклонила отмену снапшота",
				interfaces.LogField{Key: "error", Value: upstreamErr.Error()},
			)
			return nil, upstreamErr
		}

		s.logger.WarnWithContext(ctx, "Снапшот уже обрабатывается, отменяем задачу локально",
			interfaces.LogField{Key: "error", Value: upstreamErr.Error()},
		)
		outcome.Note = softCancelNote
	}

	if err := s.coordinator.CancelJob(ctx, job.ID, reason); err != nil {
		return nil, err
	}

	outcome.Success = true
	outcome.Status = string(models.SyncJobCancelled)
	outcome.Message = "Снапшот отменен"
	return outcome, nil
}

func (s *AbortService) findJob(ctx context.Context, snapshotID string) (*models.SyncJob, error) {
	if snapshotID == "" {
		return s.coordinator.LatestPendingJob(ctx)
	}
	return s.coordinator.JobBySnapshot(ctx, snapshotID)
}

func isSoftCancel(err error) bool {
	msg := err.Error()
	var apiErr *pkgerrors.UpstreamAPIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	msg = strings.ToLower(msg)
	for _, marker := range softCancelMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
