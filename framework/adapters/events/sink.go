package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/observability"
)

// SinkHandler пересылает все события шины во внешний публикатор (Kafka, NATS,
// WebSocket). Ошибка доставки логируется и возвращается шине, которая решает
// про retry и DLQ.
type SinkHandler struct {
	name      string
	publisher events.EventPublisher
	logger    *zap.Logger
}

// NewSinkHandler создает обработчик-пересыльщик
func NewSinkHandler(name string, publisher events.EventPublisher, logger *zap.Logger) *SinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SinkHandler{
		name:      name,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "event-sink"), zap.String("sink", name)),
	}
}

// Handle публикует событие во внешний публикатор внутри span event.{type}
func (h *SinkHandler) Handle(ctx context.Context, event events.Event) error {
	err := observability.TraceEvent(ctx, event.EventType(), func(ctx context.Context) error {
		return h.publisher.Publish(ctx, event)
	})
	if err != nil {
		h.logger.Warn("event delivery failed",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// EventType подписка на все события
func (h *SinkHandler) EventType() string {
	return events.AllEvents
}

// Name возвращает имя получателя
func (h *SinkHandler) Name() string {
	return h.name
}
