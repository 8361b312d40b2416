package application

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/domain"
)

// DefaultSession сессия корзины по умолчанию
const DefaultSession = "default"

// sessionStripes число блокировок, между которыми распределяются сессии
const sessionStripes = 256

// Carts реестр корзин по сессиям. Строки корзин живут только в CartStore,
// в памяти процесса хранится лишь фиксированный набор блокировок.
type Carts struct {
	store Store
	lines CartStore
	locks [sessionStripes]sync.Mutex
	instrumentation
}

func newCarts(store Store, lines CartStore, in instrumentation) *Carts {
	return &Carts{store: store, lines: lines, instrumentation: in}
}

// Session возвращает корзину сессии. Пустой id означает DefaultSession.
func (c *Carts) Session(id string) *Cart {
	if id == "" {
		id = DefaultSession
	}
	return &Cart{id: id, carts: c}
}

// lock блокировка сессии: изменения и оформление одной корзины внутри
// процесса выполняются по очереди
func (c *Carts) lock(session string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(session))
	return &c.locks[h.Sum32()%sessionStripes]
}

// Cart корзина одной сессии
type Cart struct {
	id    string
	carts *Carts
}

// CartViewLine строка корзины с живыми данными каталога
type CartViewLine struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView содержимое корзины для показа
type CartView struct {
	Session string          `json:"session"`
	Lines   []CartViewLine  `json:"lines"`
	Total   decimal.Decimal `json:"total"`
}

// ID идентификатор сессии
func (c *Cart) ID() string {
	return c.id
}

// Add добавляет товар. Повторное добавление увеличивает количество в строке,
// суммарное количество сверяется с текущим остатком. Остаток не резервируется.
func (c *Cart) Add(ctx context.Context, itemID int64, quantity int) error {
	return c.carts.command(ctx, "add_to_cart", func(ctx context.Context) error {
		mu := c.carts.lock(c.id)
		mu.Lock()
		defer mu.Unlock()

		item, err := c.carts.item(ctx, itemID)
		if err != nil {
			return err
		}
		if err := domain.ValidateQuantity(quantity); err != nil {
			return err
		}

		return c.update(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
			return domain.MergeLine(lines, itemID, quantity, item.Stock)
		})
	})
}

// Lines строки корзины в порядке добавления
func (c *Cart) Lines(ctx context.Context) ([]domain.CartLine, error) {
	return query(ctx, c.carts.instrumentation, "cart_lines", c.loadLines)
}

// Total сумма корзины по текущим ценам каталога
func (c *Cart) Total(ctx context.Context) (decimal.Decimal, error) {
	return query(ctx, c.carts.instrumentation, "cart_total", func(ctx context.Context) (decimal.Decimal, error) {
		view, err := c.view(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		return view.Total, nil
	})
}

// View строки корзины с названиями, ценами и суммой
func (c *Cart) View(ctx context.Context) (CartView, error) {
	return query(ctx, c.carts.instrumentation, "view_cart", c.view)
}

// Clear очищает корзину
func (c *Cart) Clear(ctx context.Context) error {
	return c.carts.command(ctx, "clear_cart", func(ctx context.Context) error {
		mu := c.carts.lock(c.id)
		mu.Lock()
		defer mu.Unlock()

		if err := c.carts.lines.Clear(ctx, c.id); err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to clear cart")
		}
		return nil
	})
}

func (c *Cart) update(ctx context.Context, fn func(lines []domain.CartLine) ([]domain.CartLine, error)) error {
	err := c.carts.lines.Update(ctx, c.id, fn)
	if err != nil && core.CodeOf(err) == "" {
		return core.Wrap(err, core.CodeStorage, "failed to update cart")
	}
	return err
}

func (c *Cart) loadLines(ctx context.Context) ([]domain.CartLine, error) {
	lines, err := c.carts.lines.Lines(ctx, c.id)
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to load cart")
	}
	return lines, nil
}

func (c *Cart) view(ctx context.Context) (CartView, error) {
	lines, err := c.loadLines(ctx)
	if err != nil {
		return CartView{}, err
	}

	view := CartView{Session: c.id, Lines: make([]CartViewLine, 0, len(lines)), Total: decimal.Zero}
	err = c.carts.store.View(ctx, func(tx ReadTx) error {
		for _, line := range lines {
			item, err := tx.Item(ctx, line.ItemID)
			if err != nil {
				return err
			}
			subtotal := item.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			view.Lines = append(view.Lines, CartViewLine{
				ItemID:    item.ID,
				Name:      item.Name,
				Quantity:  line.Quantity,
				UnitPrice: item.Price,
				Subtotal:  subtotal,
			})
			view.Total = view.Total.Add(subtotal)
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return view, nil
}

func (c *Carts) item(ctx context.Context, itemID int64) (domain.Item, error) {
	var item domain.Item
	err := c.store.View(ctx, func(tx ReadTx) error {
		var err error
		item, err = tx.Item(ctx, itemID)
		return err
	})
	return item, err
}

// releaseAfterCommit убирает из корзины оформленные строки. Товары,
// добавленные в корзину после чтения строк заказа, остаются в ней. Ошибка
// только журналируется: заказ уже оформлен.
func (c *Cart) releaseAfterCommit(ctx context.Context, orderID int64, committed []domain.CartLine) {
	err := c.update(ctx, func(lines []domain.CartLine) ([]domain.CartLine, error) {
		return domain.ReleaseLines(lines, committed), nil
	})
	if err != nil {
		c.carts.logger.Error("failed to release cart after commit",
			zap.String("session", c.id),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}
}
