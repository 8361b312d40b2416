package application

import (
	"context"

	"github.com/akriventsev/sportstore/internal/domain"
)

// Reporter считает сводку продаж
type Reporter struct {
	store Store
	instrumentation
}

// newReporter создает построитель отчетов
func newReporter(store Store, in instrumentation) *Reporter {
	return &Reporter{store: store, instrumentation: in}
}

// Report пересчитывает сводку по одному согласованному снимку заказов.
// Count и Revenue учитывают статусы paid, shipped и delivered.
func (r *Reporter) Report(ctx context.Context) (domain.Report, error) {
	return query(ctx, r.instrumentation, "sales_report", func(ctx context.Context) (domain.Report, error) {
		report := domain.NewReport()
		err := r.store.View(ctx, func(tx ReadTx) error {
			return tx.Orders(ctx, func(order domain.Order) bool {
				report.Add(order)
				return true
			})
		})
		if err != nil {
			return domain.Report{}, err
		}
		return *report, nil
	})
}
