// Package domain содержит модель точки продаж: товары, корзину, заказы,
// статусы заказов, отчеты о продажах и сотрудников.
package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/akriventsev/sportstore/framework/core"
)

// Item товар каталога
type Item struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
}

// NewItem проверяет атрибуты нового товара. ID назначает хранилище.
func NewItem(name, category string, price decimal.Decimal, stock int) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, core.NewError(core.CodeInvalidArgument, "item name must not be blank")
	}
	if price.IsNegative() {
		return Item{}, core.Errorf(core.CodeInvalidArgument, "price must not be negative: %s", price)
	}
	if stock < 0 {
		return Item{}, core.Errorf(core.CodeInvalidArgument, "initial stock must not be negative: %d", stock)
	}
	return Item{
		Name:     name,
		Category: strings.TrimSpace(category),
		Price:    price,
		Stock:    stock,
	}, nil
}

// Receive увеличивает остаток на quantity
func (i *Item) Receive(quantity int) error {
	if quantity <= 0 {
		return core.Errorf(core.CodeInvalidArgument, "supply quantity must be positive: %d", quantity)
	}
	if quantity > math.MaxInt-i.Stock {
		return core.Errorf(core.CodeInvalidArgument, "supply of %d would overflow stock %d of item %d", quantity, i.Stock, i.ID)
	}
	i.Stock += quantity
	return nil
}

// Take списывает quantity со склада или возвращает InsufficientStockError
func (i *Item) Take(quantity int) error {
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	if quantity > i.Stock {
		return &InsufficientStockError{ItemID: i.ID, Requested: quantity, Available: i.Stock}
	}
	i.Stock -= quantity
	return nil
}

// Matcher проверяет вхождение текста в название или категорию без учета регистра
type Matcher struct {
	needle string
}

// NewMatcher готовит поисковую строку. Пустая строка совпадает с любым товаром.
func NewMatcher(text string) Matcher {
	return Matcher{needle: fold(strings.TrimSpace(text))}
}

// Match проверяет товар
func (m Matcher) Match(item Item) bool {
	if m.needle == "" {
		return true
	}
	return strings.Contains(fold(item.Name), m.needle) || strings.Contains(fold(item.Category), m.needle)
}

func fold(s string) string {
	return cases.Fold().String(s)
}
