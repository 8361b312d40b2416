package events

import (
	"fmt"
	"sort"
	"sync"
)

type subscription struct {
	handler  EventHandler
	priority int
	seq      int
}

// InMemoryEventSubscriber реестр подписок в памяти
type InMemoryEventSubscriber struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	seq      int
}

// NewInMemoryEventSubscriber создает новый in-memory подписчик
func NewInMemoryEventSubscriber() *InMemoryEventSubscriber {
	return &InMemoryEventSubscriber{
		handlers: make(map[string][]subscription),
	}
}

// Subscribe подписывается на тип события. AllEvents подписывает на все типы.
func (s *InMemoryEventSubscriber) Subscribe(eventType string, handler EventHandler) error {
	return s.SubscribeWithPriority(eventType, handler, 0)
}

// SubscribeWithPriority подписывается с приоритетом (меньше = раньше)
func (s *InMemoryEventSubscriber) SubscribeWithPriority(eventType string, handler EventHandler, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.handlers[eventType] {
		if sub.handler == handler {
			return fmt.Errorf("handler already subscribed to event type %s", eventType)
		}
	}

	s.seq++
	s.handlers[eventType] = append(s.handlers[eventType], subscription{
		handler:  handler,
		priority: priority,
		seq:      s.seq,
	})
	return nil
}

// Unsubscribe отписывается от типа события
func (s *InMemoryEventSubscriber) Unsubscribe(eventType string, handler EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.handlers[eventType]
	for i, sub := range subs {
		if sub.handler == handler {
			s.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("handler not found for event type %s", eventType)
}

// GetHandlers возвращает обработчики типа события вместе с подписчиками
// на все события, упорядоченные по приоритету и порядку подписки
func (s *InMemoryEventSubscriber) GetHandlers(eventType string) []EventHandler {
	s.mu.RLock()
	subs := make([]subscription, 0, len(s.handlers[eventType])+len(s.handlers[AllEvents]))
	subs = append(subs, s.handlers[eventType]...)
	if eventType != AllEvents {
		subs = append(subs, s.handlers[AllEvents]...)
	}
	s.mu.RUnlock()

	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority < subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})

	result := make([]EventHandler, len(subs))
	for i, sub := range subs {
		result[i] = sub.handler
	}
	return result
}
