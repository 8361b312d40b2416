package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/metrics"
	"github.com/akriventsev/sportstore/framework/observability"
)

// instrumentation общая обвязка операций: span, метрики и журнал
type instrumentation struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	publisher events.EventPublisher
	now       func() time.Time
}

func (in instrumentation) command(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	if in.metrics != nil {
		in.metrics.IncrementActiveCommands(ctx)
		defer in.metrics.DecrementActiveCommands(ctx)
	}

	err := observability.TraceCommand(ctx, name, fn)

	if in.metrics != nil {
		in.metrics.RecordCommand(ctx, name, time.Since(start), err == nil)
		if errors.Is(err, core.ErrInsufficientStock) {
			in.metrics.RecordStockShortage(ctx, name)
		}
	}
	in.logResult(name, start, err)
	return err
}

func query[T any](ctx context.Context, in instrumentation, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	if in.metrics != nil {
		in.metrics.IncrementActiveQueries(ctx)
		defer in.metrics.DecrementActiveQueries(ctx)
	}

	result, err := observability.TraceQuery(ctx, name, fn)

	if in.metrics != nil {
		in.metrics.RecordQuery(ctx, name, time.Since(start), err == nil)
	}
	in.logResult(name, start, err)
	return result, err
}

// logResult: ошибки клиента пишутся на debug, прочие на error
func (in instrumentation) logResult(name string, start time.Time, err error) {
	fields := []zap.Field{zap.String("operation", name), zap.Duration("duration", time.Since(start))}
	switch {
	case err == nil:
		in.logger.Debug("operation completed", fields...)
	case isClientError(err):
		in.logger.Debug("operation rejected", append(fields, zap.Error(err))...)
	default:
		in.logger.Error("operation failed", append(fields, zap.Error(err))...)
	}
}

// publish рассылает события после фиксации транзакции. Ошибка доставки не
// отменяет уже выполненную операцию.
func (in instrumentation) publish(ctx context.Context, evs ...events.Event) {
	if in.publisher == nil {
		return
	}
	correlationID := observability.ExtractCorrelationID(ctx)
	for _, event := range evs {
		if c, ok := event.(correlated); ok && correlationID != "" {
			c.WithCorrelationID(correlationID)
		}
		if err := in.publisher.Publish(ctx, event); err != nil {
			in.logger.Warn("event publication failed",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID()),
				zap.Error(err),
			)
		}
	}
}

type correlated interface {
	WithCorrelationID(id string) *events.BaseEvent
}

func isClientError(err error) bool {
	switch core.CodeOf(err) {
	case core.CodeInvalidArgument, core.CodeNotFound, core.CodeInsufficientStock,
		core.CodeEmptyCart, core.CodeInvalidTransition:
		return true
	}
	return false
}
