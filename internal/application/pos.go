package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/adapters/repository"
	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/metrics"
	"github.com/akriventsev/sportstore/internal/domain"
)

// Config зависимости и настройки сервисов
type Config struct {
	// RestockOnCancel возвращать остатки при отмене заказа
	RestockOnCancel bool
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	// Events получает доменные события после фиксации изменений
	Events events.EventPublisher
	Clock  func() time.Time
}

// POS набор сервисов точки продаж над одним хранилищем
type POS struct {
	Catalog *Catalog
	Carts   *Carts
	Orders  *OrderEngine
	Reports *Reporter
	Staff   *Staff
}

// New собирает сервисы
func New(store Store, carts CartStore, employees repository.Repository[domain.Employee], config Config) *POS {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	in := func(component string) instrumentation {
		return instrumentation{
			logger:    logger.With(zap.String("component", component)),
			metrics:   config.Metrics,
			publisher: config.Events,
			now:       clock,
		}
	}

	return &POS{
		Catalog: newCatalog(store, in("catalog")),
		Carts:   newCarts(store, carts, in("cart")),
		Orders:  newOrderEngine(store, config.RestockOnCancel, in("orders")),
		Reports: newReporter(store, in("reports")),
		Staff:   newStaff(employees, in("staff")),
	}
}

type sampleItem struct {
	name, category, price string
	stock                 int
}

var sampleItems = []sampleItem{
	{"Football ball", "Football", "1200", 10},
	{"Nike boots", "Football", "3200", 5},
	{"Adidas gloves", "Boxing", "2100", 7},
}

type sampleEmployee struct {
	name, position, salary string
}

var sampleEmployees = []sampleEmployee{
	{"Ivan Petrov", "Seller", "45000"},
	{"Anna Smirnova", "Manager", "60000"},
}

// SeedSampleData заполняет пустой каталог демонстрационными товарами и
// сотрудниками. Непустой каталог не трогается. Возвращает true, если данные
// были загружены.
func (p *POS) SeedSampleData(ctx context.Context) (bool, error) {
	for _, err := range p.Catalog.Search(ctx, "") {
		return false, err
	}

	for _, s := range sampleItems {
		if _, err := p.Catalog.AddItem(ctx, s.name, s.category, decimal.RequireFromString(s.price), s.stock); err != nil {
			return false, err
		}
	}
	for _, s := range sampleEmployees {
		if _, err := p.Staff.Hire(ctx, s.name, s.position, decimal.RequireFromString(s.salary)); err != nil {
			return false, err
		}
	}
	return true, nil
}
