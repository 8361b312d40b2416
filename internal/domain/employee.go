package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akriventsev/sportstore/framework/core"
)

// Employee сотрудник магазина
type Employee struct {
	EmployeeID string          `json:"id"`
	Name       string          `json:"name"`
	Position   string          `json:"position"`
	Salary     decimal.Decimal `json:"salary"`
	HiredAt    time.Time       `json:"hired_at"`
}

// NewEmployee проверяет данные и назначает идентификатор
func NewEmployee(name, position string, salary decimal.Decimal, hiredAt time.Time) (Employee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Employee{}, core.NewError(core.CodeInvalidArgument, "employee name must not be blank")
	}
	if salary.IsNegative() {
		return Employee{}, core.Errorf(core.CodeInvalidArgument, "salary must not be negative: %s", salary)
	}
	return Employee{
		EmployeeID: uuid.NewString(),
		Name:       name,
		Position:   strings.TrimSpace(position),
		Salary:     salary,
		HiredAt:    hiredAt.UTC(),
	}, nil
}

// ID реализует repository.Entity
func (e Employee) ID() string {
	return e.EmployeeID
}
