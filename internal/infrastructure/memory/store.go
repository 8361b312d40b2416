// Package memory хранит каталог, заказы и корзины в памяти процесса.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
)

// Store хранилище в памяти. Запись выполняется под единственным мьютексом:
// изменения транзакции копятся отдельно и применяются, только если функция
// транзакции завершилась без ошибки. Чтение работает по копии данных.
type Store struct {
	mu          sync.RWMutex
	items       map[int64]domain.Item
	orders      map[int64]domain.Order
	nextItemID  int64
	nextOrderID int64
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		items:  make(map[int64]domain.Item),
		orders: make(map[int64]domain.Order),
	}
}

// View выполняет fn над снимком данных. Блокировка снимается до вызова fn.
func (s *Store) View(ctx context.Context, fn func(tx application.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snap := &snapshot{
		items:  sortedValues(s.items, func(i domain.Item) int64 { return i.ID }),
		orders: sortedValues(s.orders, func(o domain.Order) int64 { return o.ID }),
	}
	s.mu.RUnlock()

	return fn(snap)
}

// Update выполняет fn в транзакции записи
func (s *Store) Update(ctx context.Context, fn func(tx application.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &writeTx{
		store:       s,
		items:       make(map[int64]domain.Item),
		orders:      make(map[int64]domain.Order),
		nextItemID:  s.nextItemID,
		nextOrderID: s.nextOrderID,
	}
	if err := fn(tx); err != nil {
		return err
	}

	maps.Copy(s.items, tx.items)
	maps.Copy(s.orders, tx.orders)
	s.nextItemID = tx.nextItemID
	s.nextOrderID = tx.nextOrderID
	return nil
}

type snapshot struct {
	items  []domain.Item
	orders []domain.Order
}

func (s *snapshot) Item(ctx context.Context, id int64) (domain.Item, error) {
	i, found := slices.BinarySearchFunc(s.items, id, func(item domain.Item, id int64) int {
		return cmp.Compare(item.ID, id)
	})
	if !found {
		return domain.Item{}, domain.ErrItemNotFound(id)
	}
	return s.items[i], nil
}

func (s *snapshot) Items(ctx context.Context, yield func(domain.Item) bool) error {
	for _, item := range s.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !yield(item) {
			return nil
		}
	}
	return nil
}

func (s *snapshot) Order(ctx context.Context, id int64) (domain.Order, error) {
	i, found := slices.BinarySearchFunc(s.orders, id, func(order domain.Order, id int64) int {
		return cmp.Compare(order.ID, id)
	})
	if !found {
		return domain.Order{}, domain.ErrOrderNotFound(id)
	}
	return s.orders[i].Clone(), nil
}

func (s *snapshot) Orders(ctx context.Context, yield func(domain.Order) bool) error {
	for _, order := range s.orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !yield(order.Clone()) {
			return nil
		}
	}
	return nil
}

// writeTx видит собственные незафиксированные изменения поверх данных Store
type writeTx struct {
	store       *Store
	items       map[int64]domain.Item
	orders      map[int64]domain.Order
	nextItemID  int64
	nextOrderID int64
}

func (tx *writeTx) Item(ctx context.Context, id int64) (domain.Item, error) {
	if item, ok := tx.items[id]; ok {
		return item, nil
	}
	if item, ok := tx.store.items[id]; ok {
		return item, nil
	}
	return domain.Item{}, domain.ErrItemNotFound(id)
}

func (tx *writeTx) Items(ctx context.Context, yield func(domain.Item) bool) error {
	merged := maps.Clone(tx.store.items)
	maps.Copy(merged, tx.items)
	for _, item := range sortedValues(merged, func(i domain.Item) int64 { return i.ID }) {
		if !yield(item) {
			return nil
		}
	}
	return nil
}

func (tx *writeTx) Order(ctx context.Context, id int64) (domain.Order, error) {
	if order, ok := tx.orders[id]; ok {
		return order.Clone(), nil
	}
	if order, ok := tx.store.orders[id]; ok {
		return order.Clone(), nil
	}
	return domain.Order{}, domain.ErrOrderNotFound(id)
}

func (tx *writeTx) Orders(ctx context.Context, yield func(domain.Order) bool) error {
	merged := maps.Clone(tx.store.orders)
	maps.Copy(merged, tx.orders)
	for _, order := range sortedValues(merged, func(o domain.Order) int64 { return o.ID }) {
		if !yield(order.Clone()) {
			return nil
		}
	}
	return nil
}

func (tx *writeTx) InsertItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	tx.nextItemID++
	item.ID = tx.nextItemID
	tx.items[item.ID] = item
	return item, nil
}

func (tx *writeTx) UpdateItem(ctx context.Context, item domain.Item) error {
	if _, err := tx.Item(ctx, item.ID); err != nil {
		return err
	}
	tx.items[item.ID] = item
	return nil
}

func (tx *writeTx) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx.nextOrderID++
	order = order.Clone()
	order.ID = tx.nextOrderID
	tx.orders[order.ID] = order
	return order.Clone(), nil
}

func (tx *writeTx) UpdateOrder(ctx context.Context, order domain.Order) error {
	current, err := tx.Order(ctx, order.ID)
	if err != nil {
		return err
	}
	current.Status = order.Status
	current.UpdatedAt = order.UpdatedAt
	tx.orders[order.ID] = current
	return nil
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	result := slices.Collect(maps.Values(m))
	slices.SortFunc(result, func(a, b V) int {
		return cmp.Compare(id(a), id(b))
	})
	return result
}
