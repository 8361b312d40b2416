package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/metrics"
)

// NATSEventConfig конфигурация для NATS Event Publisher
type NATSEventConfig struct {
	SubjectPrefix string
	RetryPolicy   events.RetryConfig
	Metrics       *metrics.Metrics
}

// DefaultNATSEventConfig возвращает конфигурацию NATS Event Publisher по умолчанию
func DefaultNATSEventConfig() NATSEventConfig {
	return NATSEventConfig{
		SubjectPrefix: "events",
		RetryPolicy:   events.DefaultRetryConfig(),
	}
}

// msgPublisher часть *nats.Conn, используемая адаптером
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSEventAdapter реализация Event Publisher через NATS
type NATSEventAdapter struct {
	config  NATSEventConfig
	conn    msgPublisher
	running bool
}

// NewNATSEventAdapter создает новый NATS Event Publisher
func NewNATSEventAdapter(conn *nats.Conn, config NATSEventConfig) (*NATSEventAdapter, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection is required")
	}
	return newNATSEventAdapter(conn, config), nil
}

func newNATSEventAdapter(conn msgPublisher, config NATSEventConfig) *NATSEventAdapter {
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "events"
	}
	if config.RetryPolicy.MaxAttempts <= 0 {
		config.RetryPolicy.MaxAttempts = 1
	}
	return &NATSEventAdapter{config: config, conn: conn}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (n *NATSEventAdapter) Start(ctx context.Context) error {
	n.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (n *NATSEventAdapter) Stop(ctx context.Context) error {
	n.running = false
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (n *NATSEventAdapter) IsRunning() bool {
	return n.running
}

// Name возвращает имя компонента (реализация core.Component)
func (n *NATSEventAdapter) Name() string {
	return "nats"
}

// Type возвращает тип компонента (реализация core.Component)
func (n *NATSEventAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Publish публикует событие в subject {prefix}.{aggregate_type}.{event_type}
func (n *NATSEventAdapter) Publish(ctx context.Context, event events.Event) error {
	env, err := NewEnvelope(event)
	if err != nil {
		n.record(ctx, event, false)
		return err
	}
	data, err := env.Marshal()
	if err != nil {
		n.record(ctx, event, false)
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := nats.NewMsg(routingKey(n.config.SubjectPrefix, event))
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", event.EventID())
	msg.Header.Set("Event-Type", event.EventType())
	for key, values := range propagationHeaders(ctx, event) {
		msg.Header[key] = values
	}

	if err := n.publishWithRetry(ctx, msg); err != nil {
		n.record(ctx, event, false)
		return err
	}
	n.record(ctx, event, true)
	return nil
}

// publishWithRetry публикует сообщение с retry логикой
func (n *NATSEventAdapter) publishWithRetry(ctx context.Context, msg *nats.Msg) error {
	policy := n.config.RetryPolicy
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = policy.Backoff(delay)
		}

		if lastErr = n.conn.PublishMsg(msg); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to publish event after %d attempts: %w", policy.MaxAttempts, lastErr)
}

func (n *NATSEventAdapter) record(ctx context.Context, event events.Event, success bool) {
	if n.config.Metrics != nil {
		n.config.Metrics.RecordEvent(ctx, event.EventType(), n.Name(), success)
	}
}
