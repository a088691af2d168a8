package services

import (
	"context"
	"fmt"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/codec"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
)

// WarehouseTriggerResult результат запроса снапшота по одному складу
type WarehouseTriggerResult struct {
	WarehouseID   int    `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Success       bool   `json:"success"`
	SnapshotID    string `json:"snapshot_id,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
}

// TriggerResult сводный результат запроса снапшотов
type TriggerResult struct {
	Success         bool                     `json:"success"`
	Message         string                   `json:"message"`
	TotalWarehouses int                      `json:"total_warehouses"`
	SuccessCount    int                      `json:"successful"`
	FailCount       int                      `json:"failed"`
	CreatedJobs     []*models.SyncJob        `json:"sync_jobs"`
	Results         []WarehouseTriggerResult `json:"results"`
}

// SnapshotRequester запрашивает у внешней системы снапшоты остатков по складам
// и регистрирует под каждый pending задачу
type SnapshotRequester struct {
	upstream    UpstreamClient
	tokens      TokenProvider
	directory   *WarehouseDirectory
	coordinator *JobCoordinator
	logger      interfaces.LoggerPort
	settings    Settings
}

// NewSnapshotRequester создает SnapshotRequester
func NewSnapshotRequester(
	upstream UpstreamClient,
	tokens TokenProvider,
	directory *WarehouseDirectory,
	coordinator *JobCoordinator,
	logger interfaces.LoggerPort,
	settings Settings,
) *SnapshotRequester {
	return &SnapshotRequester{
		upstream:    upstream,
		tokens:      tokens,
		directory:   directory,
		coordinator: coordinator,
		logger:      logger,
		settings:    settings.withDefaults(),
	}
}

// RequestSnapshots запрашивает снапшот по одному складу или по всем активным.
// Сбой по складу не прерывает остальные; просроченный токен прерывает весь запрос
func (r *SnapshotRequester) RequestSnapshots(ctx context.Context, warehouseID *int) (*TriggerResult, error) {
	// Проверяем токен до первого обращения к внешнему API
	if _, err := r.tokens.GetValidAccessToken(ctx); err != nil {
		return nil, err
	}

	targets, err := r.targets(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	result := &TriggerResult{
		TotalWarehouses: len(targets),
		CreatedJobs:     []*models.SyncJob{},
		Results:         make([]WarehouseTriggerResult, 0, len(targets)),
	}

	if len(targets) == 0 {
		result.Message = "Нет активных складов для синхронизации"
		return result, nil
	}

	for i, warehouse := range targets {
		if i > 0 {
			if err := sleepCtx(ctx, r.settings.RequestDelay); err != nil {
				r.summarize(result)
				return result, err
			}
		}

		item, job, err := r.requestOne(ctx, warehouse)
		if err != nil && pkgerrors.IsAuthExpired(err) {
			r.summarize(result)
			return result, err
		}

		result.Results = append(result.Results, item)
		if item.Success {
			result.CreatedJobs = append(result.CreatedJobs, job)
			result.SuccessCount++
			metrics.SnapshotRequests.WithLabelValues("ok").Inc()
		} else {
			result.FailCount++
			metrics.SnapshotRequests.WithLabelValues("failed").Inc()
		}
	}

	r.summarize(result)

	r.logger.InfoWithContext(ctx, "Запрос снапшотов остатков завершен",
		interfaces.LogField{Key: "total", Value: result.TotalWarehouses},
		interfaces.LogField{Key: "success", Value: result.SuccessCount},
		interfaces.LogField{Key: "failed", Value: result.FailCount},
	)

	return result, nil
}

// targets возвращает склады, по которым нужно запросить снапшоты
func (r *SnapshotRequester) targets(ctx context.Context, warehouseID *int) ([]models.Warehouse, error) {
	if warehouseID == nil {
		return r.directory.ActiveWarehouses(ctx)
	}

	warehouse, err := r.directory.Warehouse(ctx, *warehouseID)
	if err == nil {
		return []models.Warehouse{*warehouse}, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	// Склада нет в реестре: внешняя система сама решит, существует ли он
	r.logger.WarnWithContext(ctx, "Склад не найден в реестре, запрашиваем снапшот по ID",
		interfaces.LogField{Key: "warehouse_id", Value: *warehouseID},
	)
	return []models.Warehouse{{
		ID:     *warehouseID,
		Name:   fmt.Sprintf("Склад %d", *warehouseID),
		Active: true,
	}}, nil
}

func (r *SnapshotRequester) requestOne(ctx context.Context, warehouse models.Warehouse) (WarehouseTriggerResult, *models.SyncJob, error) {
	item := WarehouseTriggerResult{
		WarehouseID:   warehouse.ID,
		WarehouseName: warehouse.Name,
	}

	req, err := r.upstream.GenerateSnapshot(ctx, codec.EncodeWarehouse(warehouse.ID))
	if err != nil {
		item.Error = err.Error()
		r.logger.ErrorWithContext(ctx, "Не удалось запросить снапшот по складу",
			interfaces.LogField{Key: "warehouse_id", Value: warehouse.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return item, nil, err
	}

	item.SnapshotID = req.SnapshotID
	item.Status = req.Status

	job, err := r.coordinator.CreatePendingJob(ctx, req.SnapshotID, req.RequestID, warehouse.ID)
	if err != nil {
		// Снапшот во внешней системе уже заказан, но отслеживать его некому
		item.Error = err.Error()
		r.logger.ErrorWithContext(ctx, "Снапшот запрошен, но задача не создана",
			interfaces.LogField{Key: "warehouse_id", Value: warehouse.ID},
			interfaces.LogField{Key: "snapshot_id", Value: req.SnapshotID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return item, nil, err
	}

	item.Success = true
	item.JobID = job.ID
	return item, job, nil
}

func (r *SnapshotRequester) summarize(result *TriggerResult) {
	result.Success = result.FailCount == 0 && result.SuccessCount == result.TotalWarehouses
	result.Message = fmt.Sprintf("Снапшоты запрошены по %d из %d складов", result.SuccessCount, result.TotalWarehouses)
}
