package fsm

import "context"

// Action действие, выполняемое при переходе
type Action interface {
	// Execute выполняет действие
	Execute(ctx context.Context, event Event) error
	// Name возвращает имя действия
	Name() string
}

// ActionFunc функция, реализующая Action
type ActionFunc func(ctx context.Context, event Event) error

// NamedAction действие с именем
type NamedAction struct {
	name   string
	action ActionFunc
}

// NewNamedAction создает новое именованное действие
func NewNamedAction(name string, action ActionFunc) *NamedAction {
	return &NamedAction{
		name:   name,
		action: action,
	}
}

func (a *NamedAction) Name() string {
	return a.name
}

func (a *NamedAction) Execute(ctx context.Context, event Event) error {
	return a.action(ctx, event)
}

// ConditionalAction действие, выполняемое только при выполнении условия
type ConditionalAction struct {
	name      string
	condition func(ctx context.Context, event Event) bool
	action    Action
}

// NewConditionalAction создает новое условное действие
func NewConditionalAction(name string, condition func(ctx context.Context, event Event) bool, action Action) *ConditionalAction {
	return &ConditionalAction{
		name:      name,
		condition: condition,
		action:    action,
	}
}

func (a *ConditionalAction) Name() string {
	return a.name
}

func (a *ConditionalAction) Execute(ctx context.Context, event Event) error {
	if a.condition(ctx, event) {
		return a.action.Execute(ctx, event)
	}
	return nil
}
