package application

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/sportstore/framework/adapters/repository"
	"github.com/akriventsev/sportstore/internal/domain"
)

// Staff список сотрудников магазина
type Staff struct {
	repo repository.Repository[domain.Employee]
	instrumentation
}

// newStaff создает список сотрудников поверх репозитория
func newStaff(repo repository.Repository[domain.Employee], in instrumentation) *Staff {
	return &Staff{repo: repo, instrumentation: in}
}

// Hire добавляет сотрудника
func (s *Staff) Hire(ctx context.Context, name, position string, salary decimal.Decimal) (domain.Employee, error) {
	employee, err := domain.NewEmployee(name, position, salary, s.now())
	if err != nil {
		return domain.Employee{}, err
	}
	err = s.command(ctx, "hire_employee", func(ctx context.Context) error {
		return s.repo.Save(ctx, employee)
	})
	if err != nil {
		return domain.Employee{}, err
	}
	return employee, nil
}

// Employees возвращает сотрудников по дате найма, затем по имени
func (s *Staff) Employees(ctx context.Context) ([]domain.Employee, error) {
	return query(ctx, s.instrumentation, "list_employees", func(ctx context.Context) ([]domain.Employee, error) {
		employees, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		slices.SortFunc(employees, func(a, b domain.Employee) int {
			if c := a.HiredAt.Compare(b.HiredAt); c != 0 {
				return c
			}
			if c := cmp.Compare(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Compare(a.EmployeeID, b.EmployeeID)
		})
		return employees, nil
	})
}

// Dismiss удаляет сотрудника
func (s *Staff) Dismiss(ctx context.Context, id string) error {
	return s.command(ctx, "dismiss_employee", func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}
