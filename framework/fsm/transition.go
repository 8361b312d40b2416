package fsm

import (
	"context"
	"fmt"
)

// Transition переход между состояниями
type Transition interface {
	// From возвращает исходное состояние
	From() State
	// To возвращает целевое состояние
	To() State
	// EventName возвращает имя события, вызывающего переход
	EventName() string
	// Execute выполняет действия перехода
	Execute(ctx context.Context, event Event) error
}

// BaseTransition базовая реализация перехода
type BaseTransition struct {
	from      State
	to        State
	eventName string
	actions   []Action
}

// NewTransition создает новый переход
func NewTransition(from, to State, eventName string) *BaseTransition {
	return &BaseTransition{
		from:      from,
		to:        to,
		eventName: eventName,
		actions:   make([]Action, 0),
	}
}

// WithActions добавляет действия к переходу
func (t *BaseTransition) WithActions(actions ...Action) *BaseTransition {
	t.actions = append(t.actions, actions...)
	return t
}

func (t *BaseTransition) From() State {
	return t.from
}

func (t *BaseTransition) To() State {
	return t.to
}

func (t *BaseTransition) EventName() string {
	return t.eventName
}

// Execute выполняет действия по порядку, первая ошибка прерывает переход
func (t *BaseTransition) Execute(ctx context.Context, event Event) error {
	for _, action := range t.actions {
		if err := action.Execute(ctx, event); err != nil {
			return fmt.Errorf("action %s failed: %w", action.Name(), err)
		}
	}
	return nil
}
