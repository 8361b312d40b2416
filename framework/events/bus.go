package events

import (
	"context"
	"fmt"
	"sync"
)

// EventMiddleware middleware для событий
type EventMiddleware func(ctx context.Context, event Event, next func(ctx context.Context, event Event) error) error

// DeadLetterQueue интерфейс для dead letter queue
type DeadLetterQueue interface {
	Publish(ctx context.Context, event Event, reason string) error
}

// InMemoryEventBus шина событий в памяти
type InMemoryEventBus struct {
	publisher  *InMemoryEventPublisher
	subscriber *InMemoryEventSubscriber
	middleware []EventMiddleware
	dlq        DeadLetterQueue
	mu         sync.RWMutex
	wg         sync.WaitGroup // активные публикации
	stopped    bool
}

// NewInMemoryEventBus создает новую шину событий
func NewInMemoryEventBus() *InMemoryEventBus {
	subscriber := NewInMemoryEventSubscriber()
	return &InMemoryEventBus{
		publisher:  NewInMemoryEventPublisher(subscriber.GetHandlers),
		subscriber: subscriber,
		middleware: make([]EventMiddleware, 0),
	}
}

// WithOrdering включает последовательную доставку
func (b *InMemoryEventBus) WithOrdering(ordered bool) *InMemoryEventBus {
	b.publisher.WithOrdering(ordered)
	return b
}

// WithRetry настраивает повторную доставку
func (b *InMemoryEventBus) WithRetry(config RetryConfig) *InMemoryEventBus {
	b.publisher.WithRetry(config)
	return b
}

// WithMiddleware добавляет middleware к шине
func (b *InMemoryEventBus) WithMiddleware(middleware EventMiddleware) *InMemoryEventBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
	return b
}

// WithDeadLetterQueue устанавливает DLQ
func (b *InMemoryEventBus) WithDeadLetterQueue(dlq DeadLetterQueue) *InMemoryEventBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dlq = dlq
	return b
}

// Publish публикует событие
func (b *InMemoryEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is stopped")
	}
	b.wg.Add(1)
	middleware := b.middleware
	dlq := b.dlq
	b.mu.RUnlock()
	defer b.wg.Done()

	next := b.publisher.Publish
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		prevNext := next
		next = func(ctx context.Context, event Event) error {
			return mw(ctx, event, prevNext)
		}
	}

	err := next(ctx, event)
	if err != nil && dlq != nil {
		_ = dlq.Publish(ctx, event, err.Error())
	}
	return err
}

// Subscribe подписывается на тип события
func (b *InMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	return b.subscriber.Subscribe(eventType, handler)
}

// Unsubscribe отписывается от типа события
func (b *InMemoryEventBus) Unsubscribe(eventType string, handler EventHandler) error {
	return b.subscriber.Unsubscribe(eventType, handler)
}

// Shutdown запрещает новые публикации и ждет завершения активных
func (b *InMemoryEventBus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
