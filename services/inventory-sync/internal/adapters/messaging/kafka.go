package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaConfig параметры подключения к Kafka
type KafkaConfig struct {
	Brokers         []string
	GroupID         string
	ClientID        string
	DeadLetterTopic string
}

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*subscription
	consumersMutex sync.Mutex
	cfg            KafkaConfig
	logger         interfaces.LoggerPort
	wg             sync.WaitGroup
}

// subscription активная подписка; consumer закрывается горутиной чтения
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) stop() {
	s.cancel()
	<-s.done
}

// NewKafkaMessaging создает producer; consumers создаются при подписке
func NewKafkaMessaging(cfg KafkaConfig, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "inventory-sync"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            strings.Join(cfg.Brokers, ","),
		"client.id":                    cfg.ClientID + "-producer",
		"acks":                         "all", // максимальная надежность
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             "snappy",
		"linger.ms":                    10, // небольшая задержка для батчинга
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer:  producer,
		consumers: make(map[string]*subscription),
		cfg:       cfg,
		logger:    logger,
	}

	// Отчеты о доставке читаются в фоне, иначе канал событий producer переполнится
	k.wg.Add(1)
	go k.deliveryReports()

	return k, nil
}

var _ interfaces.MessagingPort = (*KafkaMessaging)(nil)

func (k *KafkaMessaging) deliveryReports() {
	defer k.wg.Done()
	for ev := range k.producer.Events() {
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			k.logger.Error("Сообщение не доставлено в Kafka",
				interfaces.LogField{Key: "topic", Value: topicName(m)},
				interfaces.LogField{Key: "error", Value: m.TopicPartition.Error.Error()},
			)
		}
	}
}

// messageToKafkaMessage преобразует сообщение в kafka.Message
func messageToKafkaMessage(topic string, message []byte, key string, headers map[string]string) *kafka.Message {
	var kafkaHeaders []kafka.Header
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	// Служебные заголовки
	kafkaHeaders = append(kafkaHeaders,
		kafka.Header{Key: "message_id", Value: []byte(uuid.New().String())},
		kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
	)

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// kafkaMessageToMessage преобразует kafka.Message в Message
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string)
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	var key string
	if msg.Key != nil {
		key = string(msg.Key)
	}

	publishedAt := msg.Timestamp
	if tsStr, ok := headers["timestamp"]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
			publishedAt = ts
		}
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       topicName(msg),
		Key:         key,
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
	}
}

func topicName(msg *kafka.Message) string {
	if msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey публикует сообщение с указанным ключом
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := messageToKafkaMessage(topic, message, key, nil)
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("ошибка публикации в топик %s: %w", topic, err)
	}
	return nil
}

// Subscribe подписывается на тему. Смещение фиксируется после обработки сообщения;
// сообщение, которое не удалось обработать, уходит в dead letter топик
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	config := &interfaces.ConsumerConfig{
		GroupID:     k.cfg.GroupID,
		AutoCommit:  false,
		PollTimeout: 100 * time.Millisecond,
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        strings.Join(k.cfg.Brokers, ","),
		"group.id":                 config.GroupID,
		"client.id":                k.cfg.ClientID + "-consumer",
		"auto.offset.reset":        "latest",
		"enable.auto.commit":       config.AutoCommit,
		"session.timeout.ms":       30000,
		"max.poll.interval.ms":     3600000, // импорт снапшота может идти долго
		"heartbeat.interval.ms":    3000,
		"fetch.wait.max.ms":        500,
		"reconnect.backoff.ms":     50,
		"reconnect.backoff.max.ms": 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на топик %s: %w", topic, err)
	}

	consumerID := uuid.New().String()
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	k.consumersMutex.Lock()
	k.consumers[consumerID] = sub
	k.consumersMutex.Unlock()

	go func() {
		defer close(sub.done)
		defer func() {
			if err := consumer.Close(); err != nil {
				k.logger.Warn("Ошибка закрытия Kafka consumer",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
			}
		}()
		k.consumeMessages(subCtx, consumer, handler, config)
	}()

	unsubscribe := func() error {
		k.consumersMutex.Lock()
		delete(k.consumers, consumerID)
		k.consumersMutex.Unlock()

		sub.stop()
		return nil
	}

	return unsubscribe, nil
}

// consumeMessages обрабатывает сообщения из Kafka до отмены контекста
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(config.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := kafkaMessageToMessage(e)

			if err := handler(ctx, msg); err != nil {
				k.logger.ErrorWithContext(ctx, "Ошибка обработки сообщения",
					interfaces.LogField{Key: "topic", Value: msg.Topic},
					interfaces.LogField{Key: "message_id", Value: msg.ID},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				k.deadLetter(ctx, msg, err)
			}

			if !config.AutoCommit {
				if _, err := consumer.CommitMessage(e); err != nil {
					k.logger.Warn("Не удалось зафиксировать смещение",
						interfaces.LogField{Key: "topic", Value: msg.Topic},
						interfaces.LogField{Key: "error", Value: err.Error()},
					)
				}
			}

		case kafka.Error:
			k.logger.Error("Ошибка Kafka",
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.LogField{Key: "error", Value: e.Error()},
			)
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}
		}
	}
}

// deadLetter пересылает необработанное сообщение с причиной в заголовках
func (k *KafkaMessaging) deadLetter(ctx context.Context, msg *interfaces.Message, cause error) {
	if k.cfg.DeadLetterTopic == "" {
		return
	}

	headers := map[string]string{
		"original_topic": msg.Topic,
		"error":          cause.Error(),
	}
	for key, value := range msg.Headers {
		if _, exists := headers[key]; !exists && key != "message_id" && key != "timestamp" {
			headers[key] = value
		}
	}

	dlq := messageToKafkaMessage(k.cfg.DeadLetterTopic, msg.Value, msg.Key, headers)
	if err := k.producer.Produce(dlq, nil); err != nil {
		k.logger.ErrorWithContext(ctx, "Не удалось отправить сообщение в dead letter топик",
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// Close останавливает подписки и дожидается отправки сообщений producer
func (k *KafkaMessaging) Close() error {
	k.consumersMutex.Lock()
	subs := make([]*subscription, 0, len(k.consumers))
	for id, sub := range k.consumers {
		subs = append(subs, sub)
		delete(k.consumers, id)
	}
	k.consumersMutex.Unlock()

	for _, sub := range subs {
		sub.stop()
	}

	k.producer.Flush(15 * 1000) // до 15 секунд на отправку буфера
	k.producer.Close()
	k.wg.Wait()

	return nil
}
