package domain

import (
	"strings"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/fsm"
)

// Status статус заказа
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled}

// Statuses возвращает все статусы в порядке жизненного цикла
func Statuses() []Status {
	result := make([]Status, len(allStatuses))
	copy(result, allStatuses)
	return result
}

// ParseStatus разбирает имя статуса без учета регистра
func ParseStatus(name string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", core.Errorf(core.CodeInvalidArgument, "unknown order status %q", name)
}

func (s Status) String() string {
	return string(s)
}

// Terminal сообщает, что из статуса нет переходов
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Settled заказ оплачен и учитывается в выручке
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusShipped || s == StatusDelivered
}

// TransitionOptions действия, навешиваемые на переходы таблицы
type TransitionOptions struct {
	// OnCancel выполняется в переходах в cancelled
	OnCancel []fsm.Action
}

// NewStatusMachine строит таблицу переходов статусов заказа. Событие перехода
// называется по целевому статусу.
//
//	pending -> paid -> shipped -> delivered
//	pending -> cancelled, paid -> cancelled
func NewStatusMachine(options TransitionOptions) *fsm.Machine {
	states := make(map[Status]fsm.State, len(allStatuses))
	for _, s := range allStatuses {
		if s.Terminal() {
			states[s] = fsm.NewTerminalState(string(s))
		} else {
			states[s] = fsm.NewBaseState(string(s))
		}
	}

	machine := fsm.NewMachine(states[StatusPending])
	for _, s := range allStatuses[1:] {
		mustNoError(machine.AddState(states[s]))
	}

	edge := func(from, to Status, actions ...fsm.Action) {
		t := fsm.NewTransition(states[from], states[to], string(to)).WithActions(actions...)
		mustNoError(machine.AddTransition(t))
	}
	edge(StatusPending, StatusPaid)
	edge(StatusPaid, StatusShipped)
	edge(StatusShipped, StatusDelivered)
	edge(StatusPending, StatusCancelled, options.OnCancel...)
	edge(StatusPaid, StatusCancelled, options.OnCancel...)

	return machine
}

func mustNoError(err error) {
	if err != nil {
		panic(err)
	}
}
