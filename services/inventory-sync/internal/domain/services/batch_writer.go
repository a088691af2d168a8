package services

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

// BatchWriter записывает пакет позиций одной транзакцией.
// Упавший пакет откатывается целиком и не затрагивает уже записанные пакеты
type BatchWriter struct {
	store PositionStore
	tx    interfaces.TxRunner

	// Now источник времени для updated_at, подменяется в тестах
	Now func() time.Time
}

// NewBatchWriter создает BatchWriter
func NewBatchWriter(store PositionStore, tx interfaces.TxRunner) *BatchWriter {
	return &BatchWriter{
		store: store,
		tx:    tx,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// UpsertBatch вставляет или обновляет позиции пакета.
// При повторе ключа внутри пакета побеждает последняя запись
func (w *BatchWriter) UpsertBatch(ctx context.Context, records []models.InventoryPosition) error {
	if len(records) == 0 {
		return nil
	}

	now := w.Now()
	stamped := make([]models.InventoryPosition, len(records))
	for i, rec := range records {
		rec.UpdatedAt = now
		stamped[i] = rec
	}

	err := w.tx.Do(ctx, func(txCtx context.Context) error {
		return w.store.UpsertPositions(txCtx, stamped)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d inventory positions: %w", len(records), err)
	}
	return nil
}
