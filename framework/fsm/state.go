package fsm

// State состояние автомата
type State interface {
	// Name возвращает имя состояния
	Name() string
	// Terminal сообщает, что из состояния нет переходов
	Terminal() bool
}

// BaseState базовая реализация состояния
type BaseState struct {
	name     string
	terminal bool
}

// NewBaseState создает новое состояние
func NewBaseState(name string) *BaseState {
	return &BaseState{name: name}
}

// NewTerminalState создает конечное состояние
func NewTerminalState(name string) *BaseState {
	return &BaseState{name: name, terminal: true}
}

func (s *BaseState) Name() string {
	return s.name
}

func (s *BaseState) Terminal() bool {
	return s.terminal
}
