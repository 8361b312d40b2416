// Package storetest содержит общие проверки контракта хранилищ. Каждая
// реализация application.Store и application.CartStore прогоняет их в своих тестах.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
)

// StoreFactory создает пустое хранилище для одного теста
type StoreFactory func(t *testing.T) application.Store

// CartStoreFactory создает пустое хранилище корзин для одного теста
type CartStoreFactory func(t *testing.T) application.CartStore

var errAbort = errors.New("abort")

// RunStore прогоняет контракт application.Store
func RunStore(t *testing.T, newStore StoreFactory) {
	t.Run("InsertAndFindItems", func(t *testing.T) { testInsertAndFindItems(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ReadOwnWrites", func(t *testing.T) { testReadOwnWrites(t, newStore(t)) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("StopIteration", func(t *testing.T) { testStopIteration(t, newStore(t)) })
	t.Run("SerializedUpdates", func(t *testing.T) { testSerializedUpdates(t, newStore(t)) })
}

func insertItem(t *testing.T, store application.Store, name string, price string, stock int) domain.Item {
	t.Helper()
	item, err := domain.NewItem(name, "Sport", decimal.RequireFromString(price), stock)
	require.NoError(t, err)

	err = store.Update(context.Background(), func(tx application.Tx) error {
		item, err = tx.InsertItem(context.Background(), item)
		return err
	})
	require.NoError(t, err)
	return item
}

func collectItems(t *testing.T, store application.Store) []domain.Item {
	t.Helper()
	var items []domain.Item
	err := store.View(context.Background(), func(tx application.ReadTx) error {
		return tx.Items(context.Background(), func(item domain.Item) bool {
			items = append(items, item)
			return true
		})
	})
	require.NoError(t, err)
	return items
}

func testInsertAndFindItems(t *testing.T, store application.Store) {
	ctx := context.Background()
	ball := insertItem(t, store, "Ball", "24.50", 20)
	boots := insertItem(t, store, "Boots", "3200", 5)
	gloves := insertItem(t, store, "Gloves", "2100", 7)

	assert.Less(t, ball.ID, boots.ID)
	assert.Less(t, boots.ID, gloves.ID)

	err := store.View(ctx, func(tx application.ReadTx) error {
		found, err := tx.Item(ctx, boots.ID)
		require.NoError(t, err)
		assert.Equal(t, "Boots", found.Name)
		assert.True(t, found.Price.Equal(decimal.RequireFromString("3200")))
		assert.Equal(t, 5, found.Stock)

		_, err = tx.Item(ctx, gloves.ID+100)
		assert.True(t, core.IsCode(err, core.CodeNotFound), "got %v", err)
		return nil
	})
	require.NoError(t, err)

	items := collectItems(t, store)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{ball.ID, boots.ID, gloves.ID}, []int64{items[0].ID, items[1].ID, items[2].ID})
}

func testRollback(t *testing.T, store application.Store) {
	ctx := context.Background()
	ball := insertItem(t, store, "Ball", "24.50", 20)

	err := store.Update(ctx, func(tx application.Tx) error {
		item, err := tx.Item(ctx, ball.ID)
		if err != nil {
			return err
		}
		item.Stock = 1
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		if _, err := tx.InsertItem(ctx, domain.Item{Name: "Ghost", Price: decimal.Zero}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	items := collectItems(t, store)
	require.Len(t, items, 1)
	assert.Equal(t, 20, items[0].Stock)
}

func testReadOwnWrites(t *testing.T, store application.Store) {
	ctx := context.Background()
	ball := insertItem(t, store, "Ball", "24.50", 20)

	err := store.Update(ctx, func(tx application.Tx) error {
		item, err := tx.Item(ctx, ball.ID)
		require.NoError(t, err)
		item.Stock -= 5
		require.NoError(t, tx.UpdateItem(ctx, item))

		again, err := tx.Item(ctx, ball.ID)
		require.NoError(t, err)
		assert.Equal(t, 15, again.Stock)
		return nil
	})
	require.NoError(t, err)

	items := collectItems(t, store)
	require.Len(t, items, 1)
	assert.Equal(t, 15, items[0].Stock)
}

func testOrders(t *testing.T, store application.Store) {
	ctx := context.Background()
	ball := insertItem(t, store, "Ball", "24.50", 20)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var first, second domain.Order
	err := store.Update(ctx, func(tx application.Tx) error {
		var err error
		first, err = tx.InsertOrder(ctx, domain.NewOrder([]domain.OrderLine{domain.SnapshotLine(ball, 5)}, created))
		if err != nil {
			return err
		}
		second, err = tx.InsertOrder(ctx, domain.NewOrder([]domain.OrderLine{domain.SnapshotLine(ball, 1)}, created))
		return err
	})
	require.NoError(t, err)
	assert.Less(t, first.ID, second.ID)

	updated := created.Add(time.Hour)
	err = store.Update(ctx, func(tx application.Tx) error {
		order, err := tx.Order(ctx, first.ID)
		if err != nil {
			return err
		}
		order.Status = domain.StatusPaid
		order.UpdatedAt = updated
		return tx.UpdateOrder(ctx, order)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx application.ReadTx) error {
		order, err := tx.Order(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, order.Status)
		assert.True(t, order.UpdatedAt.Equal(updated))
		assert.True(t, order.CreatedAt.Equal(created))
		require.Len(t, order.Lines, 1)
		assert.Equal(t, domain.OrderLine{ItemID: ball.ID, Name: "Ball", Quantity: 5, UnitPrice: order.Lines[0].UnitPrice}, order.Lines[0])
		assert.Equal(t, "24.50", order.Lines[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "122.50", order.Total.StringFixed(2))

		_, err = tx.Order(ctx, second.ID+100)
		assert.True(t, core.IsCode(err, core.CodeNotFound), "got %v", err)

		var ids []int64
		require.NoError(t, tx.Orders(ctx, func(o domain.Order) bool {
			ids = append(ids, o.ID)
			return true
		}))
		assert.Equal(t, []int64{first.ID, second.ID}, ids)
		return nil
	})
	require.NoError(t, err)
}

func testStopIteration(t *testing.T, store application.Store) {
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		insertItem(t, store, name, "1", 1)
	}

	var seen int
	err := store.View(ctx, func(tx application.ReadTx) error {
		return tx.Items(ctx, func(domain.Item) bool {
			seen++
			return seen < 2
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

// testSerializedUpdates: проверка остатка и списание в одной транзакции не
// должны продавать больше, чем есть на складе.
func testSerializedUpdates(t *testing.T, store application.Store) {
	ctx := context.Background()
	ball := insertItem(t, store, "Ball", "1", 10)

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, func(tx application.Tx) error {
				item, err := tx.Item(ctx, ball.ID)
				if err != nil {
					return err
				}
				if err := item.Take(1); err != nil {
					return err
				}
				return tx.UpdateItem(ctx, item)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, core.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	items := collectItems(t, store)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Stock)
}

// add увеличивает строку корзины на quantity без ограничения остатком
func add(ctx context.Context, store application.CartStore, session string, itemID int64, quantity int) error {
	return store.Update(ctx, session, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		return domain.MergeLine(lines, itemID, quantity, math.MaxInt)
	})
}

// RunCartStore прогоняет контракт application.CartStore
func RunCartStore(t *testing.T, newStore CartStoreFactory) {
	ctx := context.Background()

	t.Run("InsertionOrder", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, add(ctx, store, "s1", 3, 1))
		require.NoError(t, add(ctx, store, "s1", 1, 2))
		require.NoError(t, add(ctx, store, "s1", 3, 4))

		lines, err := store.Lines(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []domain.CartLine{{ItemID: 3, Quantity: 5}, {ItemID: 1, Quantity: 2}}, lines)
	})

	t.Run("SessionsIsolated", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, add(ctx, store, "s1", 1, 1))

		lines, err := store.Lines(ctx, "s2")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("Clear", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, add(ctx, store, "s1", 1, 1))
		require.NoError(t, store.Clear(ctx, "s1"))
		require.NoError(t, store.Clear(ctx, "s1"))

		lines, err := store.Lines(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("FailedUpdateKeepsLines", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, add(ctx, store, "s1", 1, 2))

		err := store.Update(ctx, "s1", func(lines []domain.CartLine) ([]domain.CartLine, error) {
			return domain.MergeLine(lines, 1, 5, 4)
		})
		assert.ErrorIs(t, err, core.ErrInsufficientStock)

		lines, err := store.Lines(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []domain.CartLine{{ItemID: 1, Quantity: 2}}, lines)
	})

	t.Run("ReleaseKeepsLaterAdditions", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, add(ctx, store, "s1", 1, 2))
		require.NoError(t, add(ctx, store, "s1", 2, 1))
		committed, err := store.Lines(ctx, "s1")
		require.NoError(t, err)

		require.NoError(t, add(ctx, store, "s1", 1, 3))
		require.NoError(t, add(ctx, store, "s1", 4, 1))
		require.NoError(t, store.Update(ctx, "s1", func(lines []domain.CartLine) ([]domain.CartLine, error) {
			return domain.ReleaseLines(lines, committed), nil
		}))

		lines, err := store.Lines(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []domain.CartLine{{ItemID: 1, Quantity: 3}, {ItemID: 4, Quantity: 1}}, lines)
	})

	t.Run("ConcurrentAddsAreNotLost", func(t *testing.T) {
		store := newStore(t)
		const writers = 8

		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := add(ctx, store, "s1", 7, 1); err != nil {
					t.Errorf("add failed: %v", err)
				}
			}()
		}
		wg.Wait()

		lines, err := store.Lines(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []domain.CartLine{{ItemID: 7, Quantity: writers}}, lines)
	})
}
