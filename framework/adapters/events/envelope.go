// Package events предоставляет адаптеры для публикации доменных событий.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/observability"
)

// CausationIDHeader заголовок с ID события-причины
const CausationIDHeader = "Causation-Id"

// Envelope формат события на шине: служебные поля плюс payload события
type Envelope struct {
	EventID     string                 `json:"event_id"`
	EventType   string                 `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Payload     json.RawMessage        `json:"payload,omitempty"`
}

// NewEnvelope упаковывает событие. Payload - JSON представление самого события.
func NewEnvelope(event events.Event) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to serialize event payload: %w", err)
	}
	if string(payload) == "{}" || string(payload) == "null" {
		payload = nil
	}

	env := Envelope{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt().UTC(),
		Payload:     payload,
	}
	if md := event.Metadata(); len(md) > 0 {
		env.Metadata = md
	}
	return env, nil
}

// Marshal сериализует envelope в JSON
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// aggregateType извлекает тип агрегата из ID формата {type}-{id}
func aggregateType(aggregateID string) string {
	if aggregateID == "" {
		return "unknown"
	}
	for _, sep := range []string{"-", "_"} {
		if kind, _, found := strings.Cut(aggregateID, sep); found && kind != "" {
			return kind
		}
	}
	return aggregateID
}

// routingKey формирует topic/subject: {prefix}.{aggregate_type}.{event_type}
func routingKey(prefix string, event events.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, aggregateType(event.AggregateID()), event.EventType())
}

// propagationHeaders заголовки сквозной трассировки сообщения: correlation ID
// события, контекст трассы и ID события-причины
func propagationHeaders(ctx context.Context, event events.Event) http.Header {
	headers := make(http.Header)
	md := event.Metadata()
	if id := md.CorrelationID(); id != "" {
		ctx = observability.InjectCorrelationID(ctx, id)
	}
	observability.PropagateCorrelationID(ctx, headers)
	if id := md.CausationID(); id != "" {
		headers.Set(CausationIDHeader, id)
	}
	return headers
}
