package domain

import "github.com/shopspring/decimal"

// StatusTotals количество и сумма заказов одного статуса
type StatusTotals struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// Report сводка продаж. Count и Revenue учитывают только оплаченные заказы
// (paid, shipped, delivered).
type Report struct {
	Count    int                     `json:"count"`
	Revenue  decimal.Decimal         `json:"revenue"`
	ByStatus map[Status]StatusTotals `json:"by_status"`
}

// NewReport создает пустой отчет со всеми статусами
func NewReport() *Report {
	byStatus := make(map[Status]StatusTotals, len(allStatuses))
	for _, s := range allStatuses {
		byStatus[s] = StatusTotals{Sum: decimal.Zero}
	}
	return &Report{Revenue: decimal.Zero, ByStatus: byStatus}
}

// Add учитывает заказ в отчете
func (r *Report) Add(order Order) {
	totals := r.ByStatus[order.Status]
	totals.Count++
	totals.Sum = totals.Sum.Add(order.Total)
	r.ByStatus[order.Status] = totals

	if order.Status.Settled() {
		r.Count++
		r.Revenue = r.Revenue.Add(order.Total)
	}
}
