package fsm

import "time"

// Event событие, запрашивающее переход
type Event interface {
	// Name возвращает имя события
	Name() string
	// Data возвращает данные события
	Data() interface{}
	// Timestamp возвращает время создания события
	Timestamp() time.Time
}

// BaseEvent базовая реализация события
type BaseEvent struct {
	name      string
	data      interface{}
	timestamp time.Time
}

// NewEvent создает новое событие
func NewEvent(name string, data interface{}) *BaseEvent {
	return &BaseEvent{
		name:      name,
		data:      data,
		timestamp: time.Now(),
	}
}

// At фиксирует время события
func (e *BaseEvent) At(ts time.Time) *BaseEvent {
	e.timestamp = ts
	return e
}

func (e *BaseEvent) Name() string {
	return e.name
}

func (e *BaseEvent) Data() interface{} {
	return e.data
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}
