package application

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/sportstore/internal/domain"
)

// Catalog товары и складские остатки
type Catalog struct {
	store Store
	instrumentation
}

// newCatalog создает каталог поверх хранилища
func newCatalog(store Store, in instrumentation) *Catalog {
	return &Catalog{store: store, instrumentation: in}
}

// AddItem добавляет товар и возвращает его с назначенным ID
func (c *Catalog) AddItem(ctx context.Context, name, category string, price decimal.Decimal, initialStock int) (domain.Item, error) {
	item, err := domain.NewItem(name, category, price, initialStock)
	if err != nil {
		return domain.Item{}, err
	}

	err = c.command(ctx, "add_item", func(ctx context.Context) error {
		return c.store.Update(ctx, func(tx Tx) error {
			item, err = tx.InsertItem(ctx, item)
			return err
		})
	})
	if err != nil {
		return domain.Item{}, err
	}

	c.publish(ctx, domain.NewItemAdded(item))
	return item, nil
}

// ReceiveSupply увеличивает остаток товара
func (c *Catalog) ReceiveSupply(ctx context.Context, itemID int64, quantity int) (domain.Item, error) {
	var item domain.Item
	err := c.command(ctx, "receive_supply", func(ctx context.Context) error {
		return c.store.Update(ctx, func(tx Tx) error {
			var err error
			item, err = tx.Item(ctx, itemID)
			if err != nil {
				return err
			}
			if err := item.Receive(quantity); err != nil {
				return err
			}
			return tx.UpdateItem(ctx, item)
		})
	})
	if err != nil {
		return domain.Item{}, err
	}

	c.publish(ctx, domain.NewStockReceived(item, quantity))
	return item, nil
}

// Find возвращает товар по ID
func (c *Catalog) Find(ctx context.Context, itemID int64) (domain.Item, error) {
	return query(ctx, c.instrumentation, "find_item", func(ctx context.Context) (domain.Item, error) {
		var item domain.Item
		err := c.store.View(ctx, func(tx ReadTx) error {
			var err error
			item, err = tx.Item(ctx, itemID)
			return err
		})
		return item, err
	})
}

// Search лениво перечисляет товары, у которых название или категория содержат
// text без учета регистра. Пустой text перечисляет весь каталог. Порядок по ID.
// Последовательность можно обходить повторно: каждый обход читает свежий снимок.
func (c *Catalog) Search(ctx context.Context, text string) iter.Seq2[domain.Item, error] {
	matcher := domain.NewMatcher(text)
	return func(yield func(domain.Item, error) bool) {
		stopped := false
		_, err := query(ctx, c.instrumentation, "search_items", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.store.View(ctx, func(tx ReadTx) error {
				return tx.Items(ctx, func(item domain.Item) bool {
					if !matcher.Match(item) {
						return true
					}
					if !yield(item, nil) {
						stopped = true
						return false
					}
					return true
				})
			})
		})
		if err != nil && !stopped {
			yield(domain.Item{}, err)
		}
	}
}
