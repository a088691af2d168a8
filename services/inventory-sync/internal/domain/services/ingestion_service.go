package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/ingest"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
	"github.com/hashicorp/go-multierror"
)

// maxKeptWarnings сколько предупреждений сохраняется в результате; остальные только считаются
const maxKeptWarnings = 100

// IngestionResult итог импорта одного файла снапшота
type IngestionResult struct {
	TotalRecords     int                      `json:"total_records"`
	RecordsWritten   int                      `json:"records_written"`
	SKUsProcessed    int                      `json:"skus_processed"`
	BatchesProcessed int                      `json:"batches_processed"` // успешно записанные пакеты
	BatchesTotal     int                      `json:"batches_total"`
	Errors           []pkgerrors.BatchFailure `json:"-"`
	Warnings         []ingest.Warning         `json:"-"`
	WarningCount     int                      `json:"warning_count"`
	Shape            string                   `json:"document_shape"`
	Duration         time.Duration            `json:"-"`
}

// Success импорт без ошибок записи пакетов
func (r *IngestionResult) Success() bool {
	return len(r.Errors) == 0
}

// Err сводная ошибка по упавшим пакетам или nil
func (r *IngestionResult) Err() error {
	if r.Success() {
		return nil
	}

	merr := &multierror.Error{ErrorFormat: joinErrors}
	for _, failure := range r.Errors {
		merr = multierror.Append(merr, failure)
	}

	partial := &pkgerrors.PartialBatchError{Failures: r.Errors, Total: r.BatchesTotal}
	return fmt.Errorf("%w: %s", partial, merr.Error())
}

// ErrorMessages тексты ошибок записи пакетов
func (r *IngestionResult) ErrorMessages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, failure := range r.Errors {
		messages = append(messages, failure.Error())
	}
	return messages
}

// WarningMessages тексты сохраненных предупреждений
func (r *IngestionResult) WarningMessages() []string {
	messages := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		messages = append(messages, w.String())
	}
	return messages
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// IngestionService потоково скачивает файл снапшота, разворачивает его в позиции
// и пишет их пакетами. Пакеты пишутся последовательно: общий бюджет соединений с БД
// делится с остальными потребителями
type IngestionService struct {
	httpClient  *http.Client
	writer      PositionWriter
	coordinator *JobCoordinator
	logger      interfaces.LoggerPort
	settings    Settings
}

// NewIngestionService создает сервис импорта. coordinator может быть nil,
// тогда прогресс задачи не сохраняется
func NewIngestionService(
	httpClient *http.Client,
	writer PositionWriter,
	coordinator *JobCoordinator,
	logger interfaces.LoggerPort,
	settings Settings,
) *IngestionService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IngestionService{
		httpClient:  httpClient,
		writer:      writer,
		coordinator: coordinator,
		logger:      logger,
		settings:    settings.withDefaults(),
	}
}

// Ingest скачивает и импортирует снапшот по ссылке.
// Ошибка означает сбой всего импорта; ошибки отдельных пакетов - в результате
func (s *IngestionService) Ingest(ctx context.Context, snapshotURL, jobID string) (*IngestionResult, error) {
	if snapshotURL == "" {
		return nil, fmt.Errorf("snapshot url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &pkgerrors.UpstreamAPIError{
			Operation:  "download snapshot",
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	s.logger.InfoWithContext(ctx, "Начата загрузка файла снапшота",
		interfaces.LogField{Key: "job_id", Value: jobID},
		interfaces.LogField{Key: "content_length", Value: resp.ContentLength},
	)

	return s.IngestReader(ctx, resp.Body, jobID)
}

// IngestReader импортирует снапшот из потока
func (s *IngestionService) IngestReader(ctx context.Context, r io.Reader, jobID string) (*IngestionResult, error) {
	start := time.Now()
	log := s.logger
	if jobID != "" {
		log = s.logger.WithJob(jobID)
	}

	result := &IngestionResult{}
	counter := &countingReader{
		r:     r,
		every: s.settings.ProgressBytes,
		onProgress: func(total int64) {
			log.Info("Загрузка снапшота", interfaces.LogField{Key: "bytes_read", Value: total})
		},
	}
	parser := ingest.NewParser(counter)

	pending := make([]models.InventoryPosition, 0, s.settings.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			s.finish(log, result, counter, start)
			return result, err
		}

		entry, err := parser.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.finish(log, result, counter, start)
			log.Error("Ошибка разбора файла снапшота",
				interfaces.LogField{Key: "error", Value: err.Error()},
				interfaces.LogField{Key: "records_written", Value: result.RecordsWritten},
			)
			return result, err
		}

		result.SKUsProcessed++
		positions, warnings := ingest.Flatten(entry)
		s.addWarnings(result, warnings)
		result.TotalRecords += len(positions)
		pending = append(pending, positions...)

		for len(pending) >= s.settings.BatchSize {
			batch := make([]models.InventoryPosition, s.settings.BatchSize)
			copy(batch, pending[:s.settings.BatchSize])
			pending = append(pending[:0], pending[s.settings.BatchSize:]...)

			if err := s.writeBatch(ctx, log, result, batch, jobID); err != nil {
				s.finish(log, result, counter, start)
				return result, err
			}
		}
	}

	if len(pending) > 0 {
		if err := s.writeBatch(ctx, log, result, pending, jobID); err != nil {
			s.finish(log, result, counter, start)
			return result, err
		}
	}

	result.Shape = parser.Shape().String()
	s.finish(log, result, counter, start)

	if jobID != "" && s.coordinator != nil {
		if err := s.coordinator.ReportProgress(ctx, jobID, result.RecordsWritten, result.TotalRecords); err != nil {
			log.Warn("Не удалось сохранить итоговый прогресс", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	return result, nil
}

// writeBatch пишет один пакет. Ошибка записи фиксируется в результате,
// ненулевой возврат только при отмене контекста
func (s *IngestionService) writeBatch(ctx context.Context, log interfaces.LoggerPort, result *IngestionResult, batch []models.InventoryPosition, jobID string) error {
	result.BatchesTotal++
	index := result.BatchesTotal

	if err := s.writer.UpsertBatch(ctx, batch); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		metrics.IngestBatches.WithLabelValues("failed").Inc()
		result.Errors = append(result.Errors, pkgerrors.BatchFailure{
			BatchIndex: index,
			Records:    len(batch),
			Err:        err,
		})
		log.Error("Не удалось записать пакет позиций",
			interfaces.LogField{Key: "batch", Value: index},
			interfaces.LogField{Key: "records", Value: len(batch)},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	} else {
		metrics.IngestBatches.WithLabelValues("written").Inc()
		metrics.IngestRecords.Add(float64(len(batch)))
		result.BatchesProcessed++
		result.RecordsWritten += len(batch)
	}

	if jobID != "" && s.coordinator != nil && index%s.settings.ProgressEveryBatches == 0 {
		if err := s.coordinator.ReportProgress(ctx, jobID, result.RecordsWritten, 0); err != nil {
			log.Warn("Не удалось сохранить прогресс импорта", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("Прогресс импорта",
			interfaces.LogField{Key: "batches", Value: index},
			interfaces.LogField{Key: "records_written", Value: result.RecordsWritten},
		)
	}

	return nil
}

func (s *IngestionService) addWarnings(result *IngestionResult, warnings []ingest.Warning) {
	result.WarningCount += len(warnings)
	for _, w := range warnings {
		if len(result.Warnings) >= maxKeptWarnings {
			return
		}
		result.Warnings = append(result.Warnings, w)
	}
}

func (s *IngestionService) finish(log interfaces.LoggerPort, result *IngestionResult, counter *countingReader, start time.Time) {
	result.Duration = time.Since(start)
	metrics.IngestDuration.Observe(result.Duration.Seconds())
	metrics.IngestBytes.Add(float64(counter.total))

	log.Info("Импорт снапшота завершен",
		interfaces.LogField{Key: "skus", Value: result.SKUsProcessed},
		interfaces.LogField{Key: "total_records", Value: result.TotalRecords},
		interfaces.LogField{Key: "records_written", Value: result.RecordsWritten},
		interfaces.LogField{Key: "batches", Value: result.BatchesTotal},
		interfaces.LogField{Key: "failed_batches", Value: len(result.Errors)},
		interfaces.LogField{Key: "warnings", Value: result.WarningCount},
		interfaces.LogField{Key: "bytes_read", Value: counter.total},
		interfaces.LogField{Key: "duration", Value: result.Duration.String()},
	)
}

// countingReader считает прочитанные байты и сообщает о каждом пройденном пороге
type countingReader struct {
	r          io.Reader
	every      int64
	total      int64
	next       int64
	onProgress func(total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.total += int64(n)
	if c.every > 0 && c.onProgress != nil {
		if c.next == 0 {
			c.next = c.every
		}
		if c.total >= c.next {
			c.onProgress(c.total)
			c.next = (c.total/c.every + 1) * c.every
		}
	}
	return n, err
}
