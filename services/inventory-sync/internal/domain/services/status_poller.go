package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
)

// Подстроки статусов внешней системы. Формулировки внешней стороны
// не специфицированы, поэтому сопоставление собрано в одном месте
var (
	readyMarkers  = []string{"complete", "success"}
	failedMarkers = []string{"error", "failed", "aborted"}
)

// ClassifyUpstreamStatus сводит свободный текстовый статус снапшота к ready, running или failed
func ClassifyUpstreamStatus(status string) models.UpstreamState {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, marker := range readyMarkers {
		if strings.Contains(s, marker) {
			return models.UpstreamReady
		}
	}
	for _, marker := range failedMarkers {
		if strings.Contains(s, marker) {
			return models.UpstreamFailed
		}
	}
	return models.UpstreamRunning
}

const upstreamFailedMessage = "Снапшот завершился ошибкой во внешней системе"

// JobPollResult результат проверки одной задачи
type JobPollResult struct {
	JobID               string `json:"job_id"`
	SnapshotID          string `json:"snapshot_id"`
	WarehouseID         int    `json:"warehouse_id"`
	Status              string `json:"status"`
	UpstreamStatus      string `json:"upstream_status,omitempty"`
	SnapshotURL         string `json:"snapshot_url,omitempty"`
	ProcessingTriggered bool   `json:"processing_triggered"`
	MarkedStale         bool   `json:"marked_stale"`
	Error               string `json:"error,omitempty"`
}

// PollResult сводный результат опроса активных задач
type PollResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	TotalChecked    int             `json:"total_checked"`
	Completed       int             `json:"completed"`
	StillProcessing int             `json:"still_processing"`
	Failed          int             `json:"failed"`
	TimedOut        int             `json:"timed_out"`
	Jobs            []JobPollResult `json:"jobs"`
}

type pollOutcome string

const (
	outcomeCompleted  pollOutcome = "completed"
	outcomeProcessing pollOutcome = "still_processing"
	outcomeFailed     pollOutcome = "failed"
	outcomeTimedOut   pollOutcome = "timed_out"
)

// StatusPoller проверяет задачи pending и processing, запускает импорт готовых
// снапшотов и проваливает зависшие задачи
type StatusPoller struct {
	upstream    UpstreamClient
	coordinator *JobCoordinator
	ingestion   *IngestionService
	logger      interfaces.LoggerPort
	settings    Settings
}

// NewStatusPoller создает StatusPoller
func NewStatusPoller(
	upstream UpstreamClient,
	coordinator *JobCoordinator,
	ingestion *IngestionService,
	logger interfaces.LoggerPort,
	settings Settings,
) *StatusPoller {
	return &StatusPoller{
		upstream:    upstream,
		coordinator: coordinator,
		ingestion:   ingestion,
		logger:      logger,
		settings:    settings.withDefaults(),
	}
}

// PollActiveJobs обходит активные задачи от старых к новым.
// Ошибка одной задачи не прерывает цикл; просроченный токен прерывает его целиком
func (p *StatusPoller) PollActiveJobs(ctx context.Context) (*PollResult, error) {
	jobs, err := p.coordinator.ActiveJobs(ctx)
	if err != nil {
		return nil, err
	}

	result := &PollResult{Jobs: make([]JobPollResult, 0, len(jobs))}
	upstreamCalls := 0

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			p.summarize(result)
			return result, err
		}

		item, outcome, err := p.pollJob(ctx, job, &upstreamCalls)
		if err != nil && pkgerrors.IsAuthExpired(err) {
			p.summarize(result)
			return result, err
		}

		result.Jobs = append(result.Jobs, item)
		result.TotalChecked++
		metrics.PollOutcomes.WithLabelValues(string(outcome)).Inc()

		switch outcome {
		case outcomeCompleted:
			result.Completed++
		case outcomeFailed:
			result.Failed++
		case outcomeTimedOut:
			result.TimedOut++
		default:
			result.StillProcessing++
		}
	}

	p.summarize(result)

	p.logger.InfoWithContext(ctx, "Опрос статусов снапшотов завершен",
		interfaces.LogField{Key: "checked", Value: result.TotalChecked},
		interfaces.LogField{Key: "completed", Value: result.Completed},
		interfaces.LogField{Key: "still_processing", Value: result.StillProcessing},
		interfaces.LogField{Key: "failed", Value: result.Failed},
		interfaces.LogField{Key: "timed_out", Value: result.TimedOut},
	)

	return result, nil
}

func (p *StatusPoller) pollJob(ctx context.Context, job *models.SyncJob, upstreamCalls *int) (JobPollResult, pollOutcome, error) {
	ctx = interfaces.WithJobID(ctx, job.ID)
	ctx = interfaces.WithSnapshotID(ctx, job.SnapshotID)

	item := JobPollResult{
		JobID:       job.ID,
		SnapshotID:  job.SnapshotID,
		WarehouseID: job.WarehouseID,
		Status:      string(job.Status),
	}

	// 1. Зависшие задачи проваливаются без обращения к внешней системе
	now := p.coordinator.Now()
	if job.IsStale(now, p.settings.StaleAfter) {
		message := fmt.Sprintf("Задача не завершилась за %s, прервана по таймауту", p.settings.StaleAfter)
		if err := p.coordinator.FailJob(ctx, job.ID, message); err != nil {
			item.Error = err.Error()
			return item, outcomeProcessing, err
		}
		p.logger.WarnWithContext(ctx, "Задача прервана по таймауту",
			interfaces.LogField{Key: "created_at", Value: job.CreatedAt},
		)
		item.Status = string(models.SyncJobFailed)
		item.MarkedStale = true
		item.Error = message
		return item, outcomeTimedOut, nil
	}

	// 2. Статус во внешней системе
	if *upstreamCalls > 0 {
		if err := sleepCtx(ctx, p.settings.PollDelay); err != nil {
			return item, outcomeProcessing, err
		}
	}
	*upstreamCalls++

	snapshot, err := p.upstream.GetSnapshot(ctx, job.SnapshotID)
	if err != nil {
		return p.handleUpstreamError(ctx, job, item, err)
	}

	item.UpstreamStatus = snapshot.Status
	item.SnapshotURL = snapshot.SnapshotURL

	// 3. Классификация
	switch ClassifyUpstreamStatus(snapshot.Status) {
	case models.UpstreamFailed:
		message := snapshot.Error
		if message == "" {
			message = upstreamFailedMessage
		}
		if err := p.coordinator.FailJob(ctx, job.ID, message); err != nil {
			item.Error = err.Error()
			return item, outcomeProcessing, err
		}
		item.Status = string(models.SyncJobFailed)
		item.Error = message
		return item, outcomeFailed, nil

	case models.UpstreamReady:
		if snapshot.SnapshotURL == "" {
			// Готов, но ссылки еще нет - ждем следующего опроса
			return item, outcomeProcessing, nil
		}
		return p.handleReady(ctx, job, item, snapshot.SnapshotURL, now)

	default:
		return item, outcomeProcessing, nil
	}
}

// handleReady запускает импорт для pending задачи или повторяет его для зависшей processing
func (p *StatusPoller) handleReady(ctx context.Context, job *models.SyncJob, item JobPollResult, url string, now time.Time) (JobPollResult, pollOutcome, error) {
	switch job.Status {
	case models.SyncJobPending:
		claimed, err := p.coordinator.StartProcessing(ctx, job.ID)
		if err != nil {
			item.Error = err.Error()
			return item, outcomeProcessing, err
		}
		if !claimed {
			// Задачу уже забрал параллельный опрос
			return item, outcomeProcessing, nil
		}

	case models.SyncJobProcessing:
		if job.ProcessingFor(now) <= p.settings.RetryProcessingAfter {
			return item, outcomeProcessing, nil
		}
		p.logger.WarnWithContext(ctx, "Повторный импорт зависшей задачи",
			interfaces.LogField{Key: "processing_for", Value: job.ProcessingFor(now).String()},
		)

	default:
		return item, outcomeProcessing, nil
	}

	item.ProcessingTriggered = true

	ingestion, ingestErr := p.ingestion.Ingest(ctx, url, job.ID)
	status, err := p.coordinator.FinalizeIngestion(ctx, job.ID, ingestion, ingestErr)
	if err != nil {
		item.Status = string(models.SyncJobProcessing)
		item.Error = err.Error()
		return item, outcomeProcessing, err
	}

	item.Status = string(status)
	if status == models.SyncJobCompleted {
		return item, outcomeCompleted, nil
	}

	switch {
	case ingestErr != nil:
		item.Error = ingestErr.Error()
	case ingestion != nil && ingestion.Err() != nil:
		item.Error = ingestion.Err().Error()
	}
	return item, outcomeFailed, nil
}

// handleUpstreamError проваливает задачу только если внешняя система не знает снапшот
func (p *StatusPoller) handleUpstreamError(ctx context.Context, job *models.SyncJob, item JobPollResult, upstreamErr error) (JobPollResult, pollOutcome, error) {
	item.Error = upstreamErr.Error()

	if pkgerrors.IsAuthExpired(upstreamErr) {
		return item, outcomeProcessing, upstreamErr
	}

	if !pkgerrors.IsNotFound(upstreamErr) {
		p.logger.WarnWithContext(ctx, "Не удалось получить статус снапшота, повторим при следующем опросе",
			interfaces.LogField{Key: "error", Value: upstreamErr.Error()},
		)
		return item, outcomeProcessing, upstreamErr
	}

	message := fmt.Sprintf("Снапшот не найден во внешней системе: %s", upstreamErr.Error())
	if err := p.coordinator.FailJob(ctx, job.ID, message); err != nil {
		return item, outcomeProcessing, err
	}
	item.Status = string(models.SyncJobFailed)
	item.Error = message
	return item, outcomeFailed, nil
}

func (p *StatusPoller) summarize(result *PollResult) {
	result.Success = true
	if result.TotalChecked == 0 {
		result.Message = "Нет активных задач синхронизации"
		return
	}
	result.Message = fmt.Sprintf(
		"Проверено задач: %d, завершено: %d, в обработке: %d, ошибок: %d, по таймауту: %d",
		result.TotalChecked, result.Completed, result.StillProcessing, result.Failed, result.TimedOut,
	)
}
