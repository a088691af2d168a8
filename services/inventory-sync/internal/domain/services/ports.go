package services

import (
	"context"

	pkgmodels "github.com/athebyme/gomarket-inventory/pkg/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

// JobStore хранилище задач синхронизации.
// Все изменения - по ключу; переходы выполняются условным обновлением
type JobStore interface {
	// CreateJob сохраняет новую задачу
	CreateJob(ctx context.Context, job *models.SyncJob) error

	// GetJob возвращает задачу по ID или ошибку errors.ErrNotFound
	GetJob(ctx context.Context, jobID string) (*models.SyncJob, error)

	// GetJobBySnapshotID возвращает последнюю задачу по ID снапшота или errors.ErrNotFound
	GetJobBySnapshotID(ctx context.Context, snapshotID string) (*models.SyncJob, error)

	// ListJobs возвращает задачи по фильтру и общее количество подходящих задач
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, int, error)

	// TransitionJob применяет update, только если текущий статус входит в from.
	// Возвращает false, если задача не найдена или уже в другом состоянии
	TransitionJob(ctx context.Context, jobID string, from []models.SyncJobStatus, update models.JobUpdate) (bool, error)

	// UpdateJobProgress обновляет счетчики задачи в состоянии processing
	UpdateJobProgress(ctx context.Context, jobID string, processed, total int) error
}

// PositionStore хранилище позиций остатков
type PositionStore interface {
	// UpsertPositions вставляет или обновляет позиции по ключу (sku, warehouse_id, bin_name)
	UpsertPositions(ctx context.Context, positions []models.InventoryPosition) error
}

// WarehouseStore чтение реестра складов
type WarehouseStore interface {
	ListWarehouses(ctx context.Context, activeOnly bool) ([]models.Warehouse, error)
	GetWarehouse(ctx context.Context, warehouseID int) (*models.Warehouse, error)
}

// UpstreamClient API внешней складской системы
type UpstreamClient interface {
	// GenerateSnapshot запрашивает формирование снапшота по складу (ID закодирован)
	GenerateSnapshot(ctx context.Context, warehouseToken string) (*models.SnapshotRequest, error)

	// GetSnapshot возвращает состояние снапшота
	GetSnapshot(ctx context.Context, snapshotID string) (*models.SnapshotStatus, error)

	// AbortSnapshot просит внешнюю систему отменить формирование снапшота
	AbortSnapshot(ctx context.Context, snapshotID, reason string) (*models.AbortResult, error)
}

// TokenProvider источник токена доступа к внешнему API.
// Возвращает errors.ErrAuthExpired, если токена нет или он истекает в ближайшие 5 минут
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// EventPublisher публикует события жизненного цикла задач
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event pkgmodels.SyncJobEvent) error
}

// PositionWriter пакетная запись позиций
type PositionWriter interface {
	UpsertBatch(ctx context.Context, records []models.InventoryPosition) error
}
