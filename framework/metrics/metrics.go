// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics сборщик метрик приложения
type Metrics struct {
	meter           metric.Meter
	commandsTotal   metric.Int64Counter
	queriesTotal    metric.Int64Counter
	eventsTotal     metric.Int64Counter
	commandDuration metric.Float64Histogram
	queryDuration   metric.Float64Histogram
	errorsTotal     metric.Int64Counter
	activeCommands  metric.Int64UpDownCounter
	activeQueries   metric.Int64UpDownCounter
	ordersCommitted metric.Int64Counter
	orderRevenue    metric.Float64Counter
	stockShortages  metric.Int64Counter
	transitions     metric.Int64Counter
}

// MeterName имя meter приложения
const MeterName = "sportstore"

// NewMetrics создает новый сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)

	commandsTotal, err := meter.Int64Counter(
		"commands_total",
		metric.WithDescription("Total number of commands processed"),
	)
	if err != nil {
		return nil, err
	}

	queriesTotal, err := meter.Int64Counter(
		"queries_total",
		metric.WithDescription("Total number of queries processed"),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"events_total",
		metric.WithDescription("Total number of events published"),
	)
	if err != nil {
		return nil, err
	}

	commandDuration, err := meter.Float64Histogram(
		"command_duration_seconds",
		metric.WithDescription("Command processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"query_duration_seconds",
		metric.WithDescription("Query processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	activeCommands, err := meter.Int64UpDownCounter(
		"active_commands",
		metric.WithDescription("Number of active commands being processed"),
	)
	if err != nil {
		return nil, err
	}

	activeQueries, err := meter.Int64UpDownCounter(
		"active_queries",
		metric.WithDescription("Number of active queries being processed"),
	)
	if err != nil {
		return nil, err
	}

	ordersCommitted, err := meter.Int64Counter(
		"orders_committed_total",
		metric.WithDescription("Total number of committed orders"),
	)
	if err != nil {
		return nil, err
	}

	orderRevenue, err := meter.Float64Counter(
		"order_revenue_total",
		metric.WithDescription("Sum of committed order totals"),
	)
	if err != nil {
		return nil, err
	}

	stockShortages, err := meter.Int64Counter(
		"stock_shortages_total",
		metric.WithDescription("Cart additions and commits rejected for insufficient stock"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"order_transitions_total",
		metric.WithDescription("Order status transitions"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:           meter,
		commandsTotal:   commandsTotal,
		queriesTotal:    queriesTotal,
		eventsTotal:     eventsTotal,
		commandDuration: commandDuration,
		queryDuration:   queryDuration,
		errorsTotal:     errorsTotal,
		activeCommands:  activeCommands,
		activeQueries:   activeQueries,
		ordersCommitted: ordersCommitted,
		orderRevenue:    orderRevenue,
		stockShortages:  stockShortages,
		transitions:     transitions,
	}, nil
}

// RecordCommand записывает метрику команды
func (m *Metrics) RecordCommand(ctx context.Context, commandName string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("command", commandName),
		attribute.Bool("success", success),
	}

	m.commandsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.commandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "command"),
			attribute.String("command", commandName),
		))
	}
}

// RecordQuery записывает метрику запроса
func (m *Metrics) RecordQuery(ctx context.Context, queryName string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("query", queryName),
		attribute.Bool("success", success),
	}

	m.queriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "query"),
			attribute.String("query", queryName),
		))
	}
}

// RecordEvent записывает метрику публикации события
func (m *Metrics) RecordEvent(ctx context.Context, eventType, sink string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("event", eventType),
		attribute.String("sink", sink),
		attribute.Bool("success", success),
	}

	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// IncrementActiveCommands увеличивает счетчик активных команд
func (m *Metrics) IncrementActiveCommands(ctx context.Context) {
	m.activeCommands.Add(ctx, 1)
}

// DecrementActiveCommands уменьшает счетчик активных команд
func (m *Metrics) DecrementActiveCommands(ctx context.Context) {
	m.activeCommands.Add(ctx, -1)
}

// IncrementActiveQueries увеличивает счетчик активных запросов
func (m *Metrics) IncrementActiveQueries(ctx context.Context) {
	m.activeQueries.Add(ctx, 1)
}

// DecrementActiveQueries уменьшает счетчик активных запросов
func (m *Metrics) DecrementActiveQueries(ctx context.Context) {
	m.activeQueries.Add(ctx, -1)
}

// RecordOrderCommitted записывает оформленный заказ и его сумму
func (m *Metrics) RecordOrderCommitted(ctx context.Context, total float64, lines int) {
	m.ordersCommitted.Add(ctx, 1, metric.WithAttributes(attribute.Int("lines", lines)))
	m.orderRevenue.Add(ctx, total)
}

// RecordStockShortage записывает отказ из-за нехватки остатка
func (m *Metrics) RecordStockShortage(ctx context.Context, operation string) {
	m.stockShortages.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordTransition записывает смену статуса заказа
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
