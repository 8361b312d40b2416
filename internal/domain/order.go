package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/sportstore/framework/core"
)

// CartLine намерение купить товар в количестве Quantity
type CartLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// ValidateQuantity проверяет количество для корзины и поставок
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return core.Errorf(core.CodeInvalidArgument, "quantity must be positive: %d", quantity)
	}
	return nil
}

// OrderLine снимок строки заказа на момент оформления. Не изменяется.
type OrderLine struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal цена строки
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SnapshotLine фиксирует название и цену товара в строке заказа
func SnapshotLine(item Item, quantity int) OrderLine {
	return OrderLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: item.Price,
	}
}

// Order оформленный заказ
type Order struct {
	ID        int64           `json:"id"`
	Lines     []OrderLine     `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewOrder создает заказ в статусе pending. Итог считается один раз.
func NewOrder(lines []OrderLine, now time.Time) Order {
	frozen := make([]OrderLine, len(lines))
	copy(frozen, lines)

	return Order{
		Lines:     frozen,
		Total:     LinesTotal(frozen),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LinesTotal сумма строк
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Clone возвращает копию заказа, не разделяющую срез строк
func (o Order) Clone() Order {
	lines := make([]OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	o.Lines = lines
	return o
}
