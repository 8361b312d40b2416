// Package fsm предоставляет таблицу переходов конечного автомата.
//
// Machine не хранит текущее состояние: одна таблица обслуживает любое
// количество сущностей, состояние каждой из них хранится рядом с сущностью
// и передается в Fire.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownState состояние не зарегистрировано в автомате
	ErrUnknownState = errors.New("unknown state")
	// ErrNoTransition переход не описан в таблице
	ErrNoTransition = errors.New("no transition")
)

// Machine таблица переходов
type Machine struct {
	mu          sync.RWMutex
	initial     State
	states      map[string]State
	transitions map[string]Transition // key: "fromState:eventName"
}

// NewMachine создает автомат с начальным состоянием
func NewMachine(initial State) *Machine {
	m := &Machine{
		initial:     initial,
		states:      make(map[string]State),
		transitions: make(map[string]Transition),
	}
	m.states[initial.Name()] = initial
	return m
}

// Initial возвращает начальное состояние
func (m *Machine) Initial() State {
	return m.initial
}

// AddState добавляет состояние
func (m *Machine) AddState(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[state.Name()]; exists {
		return fmt.Errorf("state %s already exists", state.Name())
	}
	m.states[state.Name()] = state
	return nil
}

// State возвращает состояние по имени
func (m *Machine) State(name string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[name]
	return state, ok
}

// AddTransition добавляет переход. Оба состояния должны быть зарегистрированы,
// из конечного состояния переходы запрещены, пара (состояние, событие)
// описывается не более одного раза.
func (m *Machine) AddTransition(transition Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := transition.From(), transition.To()
	if _, ok := m.states[from.Name()]; !ok {
		return fmt.Errorf("%w: from state %s", ErrUnknownState, from.Name())
	}
	if _, ok := m.states[to.Name()]; !ok {
		return fmt.Errorf("%w: to state %s", ErrUnknownState, to.Name())
	}
	if from.Terminal() {
		return fmt.Errorf("state %s is terminal", from.Name())
	}

	key := transitionKey(from.Name(), transition.EventName())
	if _, exists := m.transitions[key]; exists {
		return fmt.Errorf("transition %s -> %s already exists", from.Name(), transition.EventName())
	}
	m.transitions[key] = transition
	return nil
}

// Transitions возвращает все переходы из состояния, упорядоченные по имени события
func (m *Machine) Transitions(from string) []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Transition
	for _, t := range m.transitions {
		if t.From().Name() == from {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EventName() < result[j].EventName()
	})
	return result
}

// Can проверяет, описан ли переход из состояния по событию
func (m *Machine) Can(from string, event Event) (bool, error) {
	if _, err := m.find(from, event); err != nil {
		if errors.Is(err, ErrNoTransition) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Fire находит разрешенный переход из from по событию, выполняет его действия
// и возвращает целевое состояние. При ошибке действий состояние не меняется:
// вызывающий код сам решает, сохранять ли результат.
func (m *Machine) Fire(ctx context.Context, from string, event Event) (State, error) {
	t, err := m.find(from, event)
	if err != nil {
		return nil, err
	}
	if err := t.Execute(ctx, event); err != nil {
		return nil, fmt.Errorf("transition %s -> %s failed: %w", from, t.To().Name(), err)
	}
	return t.To(), nil
}

func (m *Machine) find(from string, event Event) (Transition, error) {
	m.mu.RLock()
	_, known := m.states[from]
	transition, ok := m.transitions[transitionKey(from, event.Name())]
	m.mu.RUnlock()

	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, from)
	}
	if !ok {
		return nil, fmt.Errorf("%w from state %s for event %s", ErrNoTransition, from, event.Name())
	}
	return transition, nil
}

func transitionKey(from, event string) string {
	return from + ":" + event
}
