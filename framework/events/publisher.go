// Package events предоставляет реализации EventPublisher.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RetryConfig конфигурация retry для публикатора
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает конфигурацию retry по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff возвращает задержку перед следующей попыткой
func (c RetryConfig) Backoff(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * c.BackoffMultiplier)
	if c.MaxDelay > 0 && next > c.MaxDelay {
		next = c.MaxDelay
	}
	return next
}

// HandlerSource источник обработчиков для типа события
type HandlerSource func(eventType string) []EventHandler

// InMemoryEventPublisher доставляет события обработчикам в памяти
type InMemoryEventPublisher struct {
	source      HandlerSource
	ordered     bool
	retryConfig *RetryConfig
}

// NewInMemoryEventPublisher создает публикатор, берущий обработчики из source
func NewInMemoryEventPublisher(source HandlerSource) *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		source: source,
	}
}

// WithOrdering включает последовательную доставку в порядке подписки
func (p *InMemoryEventPublisher) WithOrdering(ordered bool) *InMemoryEventPublisher {
	p.ordered = ordered
	return p
}

// WithRetry настраивает retry логику
func (p *InMemoryEventPublisher) WithRetry(config RetryConfig) *InMemoryEventPublisher {
	p.retryConfig = &config
	return p
}

// Publish публикует событие
func (p *InMemoryEventPublisher) Publish(ctx context.Context, event Event) error {
	handlers := p.source(event.EventType())
	if len(handlers) == 0 {
		return nil
	}

	if p.ordered {
		var errs []error
		for _, handler := range handlers {
			if err := p.deliver(ctx, event, handler); err != nil {
				errs = append(errs, fmt.Errorf("handler %s failed: %w", handler.EventType(), err))
			}
		}
		return errors.Join(errs...)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))

	for _, handler := range handlers {
		wg.Add(1)
		go func(h EventHandler) {
			defer wg.Done()
			if err := p.deliver(ctx, event, h); err != nil {
				errCh <- fmt.Errorf("handler %s failed: %w", h.EventType(), err)
			}
		}(handler)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *InMemoryEventPublisher) deliver(ctx context.Context, event Event, handler EventHandler) error {
	if p.retryConfig == nil {
		return handler.Handle(ctx, event)
	}

	var lastErr error
	delay := p.retryConfig.InitialDelay

	for attempt := 0; attempt < p.retryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = p.retryConfig.Backoff(delay)
		}

		err := handler.Handle(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("delivery failed after %d attempts: %w", p.retryConfig.MaxAttempts, lastErr)
}
