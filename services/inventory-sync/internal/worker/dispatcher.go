// Package worker обработка команд синхронизации, приходящих через брокер
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-inventory/pkg/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
)

// Dispatcher выполняет команды воркера через сервис синхронизации
type Dispatcher struct {
	sync   services.SyncServiceInterface
	logger interfaces.LoggerPort
}

// NewDispatcher создает диспетчер команд
func NewDispatcher(sync services.SyncServiceInterface, logger interfaces.LoggerPort) *Dispatcher {
	return &Dispatcher{sync: sync, logger: logger}
}

// Handle обрабатывает одно сообщение. Ошибка отправляет сообщение в dead letter топик
func (d *Dispatcher) Handle(ctx context.Context, msg *interfaces.Message) error {
	startTime := time.Now()
	metrics.WorkerActive.Inc()
	defer metrics.WorkerActive.Dec()

	d.logger.InfoWithContext(ctx, "Получена команда синхронизации",
		interfaces.LogField{Key: "message_id", Value: msg.ID},
		interfaces.LogField{Key: "topic", Value: msg.Topic},
	)

	command, err := messaging.DecodeCommand(msg)
	if err != nil {
		d.logger.ErrorWithContext(ctx, "Ошибка декодирования команды",
			interfaces.LogField{Key: "error", Value: err.Error()})
		metrics.WorkerMessages.WithLabelValues(msg.Topic, "error").Inc()
		return err
	}

	summary, err := d.execute(ctx, command)
	if err != nil {
		d.logger.ErrorWithContext(ctx, "Ошибка обработки команды",
			interfaces.LogField{Key: "command_type", Value: command.CommandType},
			interfaces.LogField{Key: "error", Value: err.Error()})
		metrics.WorkerMessages.WithLabelValues(msg.Topic, "error").Inc()
		return err
	}
	if summary == "" {
		metrics.WorkerMessages.WithLabelValues(msg.Topic, "unknown").Inc()
		return nil
	}

	duration := time.Since(startTime).Seconds()
	metrics.WorkerProcessingDuration.WithLabelValues(msg.Topic).Observe(duration)
	metrics.WorkerMessages.WithLabelValues(msg.Topic, "success").Inc()

	d.logger.InfoWithContext(ctx, "Команда успешно обработана",
		interfaces.LogField{Key: "command_type", Value: command.CommandType},
		interfaces.LogField{Key: "result", Value: summary},
		interfaces.LogField{Key: "duration", Value: duration},
	)
	return nil
}

// execute возвращает краткий итог команды; пустая строка - команда неизвестна
func (d *Dispatcher) execute(ctx context.Context, command *pkgmodels.SyncCommand) (string, error) {
	switch command.CommandType {
	case pkgmodels.TriggerSnapshotCommand:
		result, err := d.sync.TriggerSnapshot(ctx, command.WarehouseID)
		if err != nil {
			return "", err
		}
		return result.Message, nil

	case pkgmodels.PollJobsCommand:
		result, err := d.sync.PollJobs(ctx)
		if err != nil {
			return "", err
		}
		return result.Message, nil

	case pkgmodels.IngestSnapshotCommand:
		if command.SnapshotURL == "" {
			return "", fmt.Errorf("команда %s: не указан snapshot_url", command.CommandType)
		}
		outcome, err := d.sync.IngestSnapshot(ctx, services.IngestRequest{
			SnapshotURL: command.SnapshotURL,
			JobID:       command.JobID,
			SnapshotID:  command.SnapshotID,
		})
		if err != nil {
			return "", err
		}
		// Частичный импорт уже отражен в задаче, повторять команду бессмысленно
		return outcome.Message, nil

	case pkgmodels.AbortSnapshotCommand:
		outcome, err := d.sync.AbortSnapshot(ctx, command.SnapshotID, command.Reason)
		if err != nil {
			return "", err
		}
		return outcome.Message, nil

	case pkgmodels.InvalidateWarehousesCommand:
		if err := d.sync.InvalidateWarehouses(ctx); err != nil {
			return "", err
		}
		return "кэш складов сброшен", nil

	default:
		d.logger.WarnWithContext(ctx, "Неизвестный тип команды",
			interfaces.LogField{Key: "command_type", Value: command.CommandType})
		return "", nil
	}
}
