// Package application реализует сценарии точки продаж поверх хранилища:
// каталог, корзины, оформление заказов, отчеты и штат сотрудников.
package application

import (
	"context"

	"github.com/akriventsev/sportstore/internal/domain"
)

// ReadTx согласованный снимок данных. Методы-итераторы обходят записи по
// возрастанию ID и останавливаются, когда yield возвращает false.
type ReadTx interface {
	// Item возвращает товар или ошибку с кодом NOT_FOUND
	Item(ctx context.Context, id int64) (domain.Item, error)
	Items(ctx context.Context, yield func(domain.Item) bool) error
	// Order возвращает заказ или ошибку с кодом NOT_FOUND
	Order(ctx context.Context, id int64) (domain.Order, error)
	Orders(ctx context.Context, yield func(domain.Order) bool) error
}

// Tx транзакция записи. Item и Order внутри Tx блокируют запись до конца
// транзакции, поэтому вызывающий код читает несколько товаров по
// возрастанию ID.
type Tx interface {
	ReadTx
	// InsertItem назначает товару новый ID
	InsertItem(ctx context.Context, item domain.Item) (domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) error
	// InsertOrder назначает заказу следующий ID
	InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	// UpdateOrder сохраняет статус и время изменения заказа
	UpdateOrder(ctx context.Context, order domain.Order) error
}

// Store хранилище каталога и заказов.
//
// Update выполняет fn в одной транзакции записи: изменения применяются, только
// если fn вернула nil. Транзакции записи сериализуются по затронутым записям.
// View выполняет fn над согласованным снимком.
type Store interface {
	View(ctx context.Context, fn func(tx ReadTx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// CartStore хранит строки корзин по идентификатору сессии.
// Порядок строк - порядок первого добавления товара.
type CartStore interface {
	Lines(ctx context.Context, session string) ([]domain.CartLine, error)
	// Update атомарно заменяет строки корзины результатом fn. При конкурентном
	// изменении fn может быть вызвана повторно со свежими строками, поэтому
	// она не должна иметь побочных эффектов. Ошибка fn возвращается как есть,
	// корзина при этом не меняется.
	Update(ctx context.Context, session string, fn func(lines []domain.CartLine) ([]domain.CartLine, error)) error
	Clear(ctx context.Context, session string) error
}
