package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/pkg/models"
)

const (
	// DefaultEventsTopic топик событий жизненного цикла задач
	DefaultEventsTopic = "inventory-sync-events"
	// DefaultCommandsTopic топик команд воркеру
	DefaultCommandsTopic = "inventory-sync-commands"
)

// JobEventPublisher публикует события задач синхронизации в брокер.
// Ключ сообщения - ID склада, чтобы события одного склада шли по порядку
type JobEventPublisher struct {
	broker interfaces.MessagingPort
	topic  string
}

// NewJobEventPublisher создает издателя событий
func NewJobEventPublisher(broker interfaces.MessagingPort, topic string) *JobEventPublisher {
	if topic == "" {
		topic = DefaultEventsTopic
	}
	return &JobEventPublisher{broker: broker, topic: topic}
}

// PublishJobEvent сериализует и отправляет событие
func (p *JobEventPublisher) PublishJobEvent(ctx context.Context, event models.SyncJobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}
	return p.broker.PublishWithKey(ctx, p.topic, fmt.Sprintf("warehouse-%d", event.WarehouseID), payload)
}

// DecodeCommand разбирает команду воркеру
func DecodeCommand(msg *interfaces.Message) (*models.SyncCommand, error) {
	var cmd models.SyncCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return nil, fmt.Errorf("invalid sync command: %w", err)
	}
	if cmd.CommandType == "" {
		return nil, fmt.Errorf("invalid sync command: command_type is required")
	}
	return &cmd, nil
}
