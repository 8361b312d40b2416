package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDLQ struct {
	mu      sync.Mutex
	reasons []string
}

func (d *recordingDLQ) Publish(ctx context.Context, event Event, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	return nil
}

func TestInMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := &MockEventHandler{}
	require.NoError(t, bus.Subscribe("test_event", handler))

	require.NoError(t, bus.Publish(context.Background(), newMockEvent("test_event", "agg-1")))
	require.NoError(t, bus.Publish(context.Background(), newMockEvent("other_event", "agg-1")))

	assert.Equal(t, 1, handler.HandledCount())
}

func TestInMemoryEventBus_WildcardSubscription(t *testing.T) {
	bus := NewInMemoryEventBus()
	all := &MockEventHandler{}
	require.NoError(t, bus.Subscribe(AllEvents, all))

	require.NoError(t, bus.Publish(context.Background(), newMockEvent("a", "agg-1")))
	require.NoError(t, bus.Publish(context.Background(), newMockEvent("b", "agg-2")))

	assert.Equal(t, 2, all.HandledCount())
}

func TestInMemoryEventBus_DuplicateSubscription(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := &MockEventHandler{}
	require.NoError(t, bus.Subscribe("test_event", handler))
	assert.Error(t, bus.Subscribe("test_event", handler))
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := &MockEventHandler{}
	require.NoError(t, bus.Subscribe("test_event", handler))
	require.NoError(t, bus.Unsubscribe("test_event", handler))

	require.NoError(t, bus.Publish(context.Background(), newMockEvent("test_event", "agg-1")))
	assert.Equal(t, 0, handler.HandledCount())
	assert.Error(t, bus.Unsubscribe("test_event", handler))
}

func TestInMemoryEventBus_PriorityOrder(t *testing.T) {
	bus := NewInMemoryEventBus().WithOrdering(true)

	var order []string
	record := func(name string) *HandlerFunc {
		return NewHandlerFunc("test_event", func(ctx context.Context, event Event) error {
			order = append(order, name)
			return nil
		})
	}
	require.NoError(t, bus.subscriber.SubscribeWithPriority("test_event", record("late"), 10))
	require.NoError(t, bus.subscriber.SubscribeWithPriority("test_event", record("early"), 1))
	require.NoError(t, bus.Subscribe(AllEvents, record("wildcard")))

	require.NoError(t, bus.Publish(context.Background(), newMockEvent("test_event", "agg-1")))
	assert.Equal(t, []string{"wildcard", "early", "late"}, order)
}

func TestInMemoryEventBus_MiddlewareAndDLQ(t *testing.T) {
	dlq := &recordingDLQ{}
	var seen []string
	bus := NewInMemoryEventBus().
		WithMiddleware(func(ctx context.Context, event Event, next func(context.Context, Event) error) error {
			seen = append(seen, event.EventType())
			return next(ctx, event)
		}).
		WithDeadLetterQueue(dlq)

	require.NoError(t, bus.Subscribe("test_event", &MockEventHandler{err: errors.New("down")}))

	err := bus.Publish(context.Background(), newMockEvent("test_event", "agg-1"))
	assert.Error(t, err)
	assert.Equal(t, []string{"test_event"}, seen)
	assert.Len(t, dlq.reasons, 1)
}

func TestInMemoryEventBus_Shutdown(t *testing.T) {
	bus := NewInMemoryEventBus()
	require.NoError(t, bus.Shutdown(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(context.Background(), newMockEvent("test_event", "agg-1"))
	assert.Error(t, err)
}
