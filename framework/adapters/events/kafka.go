package events

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/metrics"
)

// KafkaEventConfig конфигурация для Kafka Event Publisher
type KafkaEventConfig struct {
	Brokers       []string
	TopicPrefix   string
	Compression   string // none, gzip, snappy, lz4, zstd
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
	Metrics       *metrics.Metrics
}

// DefaultKafkaEventConfig возвращает конфигурацию Kafka Event Publisher по умолчанию
func DefaultKafkaEventConfig() KafkaEventConfig {
	return KafkaEventConfig{
		Brokers:       []string{"localhost:9092"},
		TopicPrefix:   "events",
		Compression:   "snappy",
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
		WriteTimeout:  10 * time.Second,
	}
}

// messageWriter часть kafka.Writer, используемая адаптером
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventAdapter реализация Event Publisher через Kafka
type KafkaEventAdapter struct {
	config  KafkaEventConfig
	writer  messageWriter
	running bool
}

// NewKafkaEventAdapter создает новый Kafka Event Publisher
func NewKafkaEventAdapter(config KafkaEventConfig) (*KafkaEventAdapter, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{}, // ключ = aggregate ID, порядок событий агрегата сохраняется
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              config.BatchSize,
		BatchTimeout:           config.FlushInterval,
		Compression:            getKafkaCompression(config.Compression),
		WriteTimeout:           config.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaEventAdapter(config, writer), nil
}

func newKafkaEventAdapter(config KafkaEventConfig, writer messageWriter) *KafkaEventAdapter {
	if config.TopicPrefix == "" {
		config.TopicPrefix = "events"
	}
	return &KafkaEventAdapter{config: config, writer: writer}
}

// getKafkaCompression преобразует строку в kafka.Compression
func getKafkaCompression(compression string) kafka.Compression {
	switch compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (k *KafkaEventAdapter) Start(ctx context.Context) error {
	k.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (k *KafkaEventAdapter) Stop(ctx context.Context) error {
	k.running = false
	return k.writer.Close()
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (k *KafkaEventAdapter) IsRunning() bool {
	return k.running
}

// Name возвращает имя компонента (реализация core.Component)
func (k *KafkaEventAdapter) Name() string {
	return "kafka"
}

// Type возвращает тип компонента (реализация core.Component)
func (k *KafkaEventAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Publish публикует событие в topic {prefix}.{aggregate_type}.{event_type}
func (k *KafkaEventAdapter) Publish(ctx context.Context, event events.Event) error {
	env, err := NewEnvelope(event)
	if err != nil {
		k.record(ctx, event, false)
		return err
	}
	data, err := env.Marshal()
	if err != nil {
		k.record(ctx, event, false)
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := kafka.Message{
		Topic: routingKey(k.config.TopicPrefix, event),
		Key:   []byte(event.AggregateID()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID())},
			{Key: "event_type", Value: []byte(event.EventType())},
			{Key: "aggregate_id", Value: []byte(event.AggregateID())},
			{Key: "occurred_at", Value: []byte(event.OccurredAt().UTC().Format(time.RFC3339Nano))},
		},
	}
	propagated := propagationHeaders(ctx, event)
	for _, key := range slices.Sorted(maps.Keys(propagated)) {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(propagated.Get(key))})
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.record(ctx, event, false)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	k.record(ctx, event, true)
	return nil
}

func (k *KafkaEventAdapter) record(ctx context.Context, event events.Event, success bool) {
	if k.config.Metrics != nil {
		k.config.Metrics.RecordEvent(ctx, event.EventType(), k.Name(), success)
	}
}
