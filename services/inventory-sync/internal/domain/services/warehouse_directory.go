package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

const (
	activeWarehousesKey = "warehouses:active"
	warehouseKeyPattern = "warehouses:*"

	// DefaultWarehouseCacheTTL время жизни кэша реестра складов
	DefaultWarehouseCacheTTL = 10 * time.Minute
)

// WarehouseDirectory чтение реестра складов с кэшированием в Redis.
// Недоступный кэш не мешает работе: чтение идет напрямую из хранилища
type WarehouseDirectory struct {
	store  WarehouseStore
	cache  interfaces.CachePort
	ttl    time.Duration
	logger interfaces.LoggerPort
}

// NewWarehouseDirectory создает справочник складов. cache может быть nil
func NewWarehouseDirectory(store WarehouseStore, cache interfaces.CachePort, ttl time.Duration, logger interfaces.LoggerPort) *WarehouseDirectory {
	if ttl <= 0 {
		ttl = DefaultWarehouseCacheTTL
	}
	return &WarehouseDirectory{store: store, cache: cache, ttl: ttl, logger: logger}
}

// ActiveWarehouses возвращает активные склады
func (d *WarehouseDirectory) ActiveWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	if d.cache != nil {
		data, err := d.cache.Get(ctx, activeWarehousesKey)
		switch {
		case err == nil:
			var cached []models.Warehouse
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
			d.logger.WarnWithContext(ctx, "Поврежденная запись кэша складов, читаем из БД")
		case !errors.Is(err, pkgerrors.ErrCacheMiss):
			d.logger.WarnWithContext(ctx, "Кэш складов недоступен",
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}

	warehouses, err := d.store.ListWarehouses(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load active warehouses: %w", err)
	}

	if d.cache != nil {
		if data, err := json.Marshal(warehouses); err == nil {
			if err := d.cache.Set(ctx, activeWarehousesKey, data, d.ttl); err != nil {
				d.logger.WarnWithContext(ctx, "Не удалось сохранить склады в кэш",
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
			}
		}
	}

	return warehouses, nil
}

// Warehouse возвращает склад по ID или errors.ErrNotFound
func (d *WarehouseDirectory) Warehouse(ctx context.Context, warehouseID int) (*models.Warehouse, error) {
	return d.store.GetWarehouse(ctx, warehouseID)
}

// Invalidate сбрасывает кэш реестра складов
func (d *WarehouseDirectory) Invalidate(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	if err := d.cache.DeleteByPattern(ctx, warehouseKeyPattern); err != nil {
		return fmt.Errorf("failed to invalidate warehouse cache: %w", err)
	}
	d.logger.InfoWithContext(ctx, "Кэш складов сброшен")
	return nil
}
