package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/fsm"
	"github.com/akriventsev/sportstore/internal/domain"
)

// OrderEngine оформляет заказы из корзин и ведет их статусы
type OrderEngine struct {
	store           Store
	machine         *fsm.Machine
	restockOnCancel bool
	instrumentation
}

// transition данные перехода, доступные действиям автомата
type transition struct {
	tx        Tx
	order     domain.Order
	restocked bool
	returned  []returnedStock
}

type returnedStock struct {
	item     domain.Item
	quantity int
}

// newOrderEngine создает движок заказов. При restockOnCancel отмена заказа
// возвращает его количества на склад в той же транзакции.
func newOrderEngine(store Store, restockOnCancel bool, in instrumentation) *OrderEngine {
	e := &OrderEngine{store: store, restockOnCancel: restockOnCancel, instrumentation: in}

	restock := fsm.NewConditionalAction("restock_on_cancel",
		func(ctx context.Context, event fsm.Event) bool { return e.restockOnCancel },
		fsm.NewNamedAction("return_stock", e.returnStock),
	)
	e.machine = domain.NewStatusMachine(domain.TransitionOptions{OnCancel: []fsm.Action{restock}})
	return e
}

// Commit оформляет заказ из корзины.
//
// Остатки всех товаров корзины блокируются по возрастанию ID и проверяются
// заново внутри транзакции: при нехватке любой строки ни остатки, ни корзина
// не меняются. После фиксации оформленные строки убираются из корзины.
func (e *OrderEngine) Commit(ctx context.Context, cart *Cart) (domain.Order, error) {
	var order domain.Order
	err := e.command(ctx, "commit_order", func(ctx context.Context) error {
		mu := cart.carts.lock(cart.id)
		mu.Lock()
		defer mu.Unlock()

		lines, err := cart.loadLines(ctx)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return core.NewError(core.CodeEmptyCart, "cannot commit an empty cart")
		}

		err = e.store.Update(ctx, func(tx Tx) error {
			order, err = e.placeOrder(ctx, tx, lines)
			return err
		})
		if err != nil {
			return err
		}

		cart.releaseAfterCommit(ctx, order.ID, lines)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if e.metrics != nil {
		total, _ := order.Total.Float64()
		e.metrics.RecordOrderCommitted(ctx, total, len(order.Lines))
	}
	e.publish(ctx, domain.NewOrderPlaced(order))
	return order, nil
}

func (e *OrderEngine) placeOrder(ctx context.Context, tx Tx, lines []domain.CartLine) (domain.Order, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if err := domain.ValidateQuantity(line.Quantity); err != nil {
			return domain.Order{}, core.Wrap(err, core.CodeInvalidArgument,
				fmt.Sprintf("cart line for item %d is invalid", line.ItemID))
		}
		ids = append(ids, line.ItemID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	items := make(map[int64]domain.Item, len(ids))
	for _, id := range ids {
		item, err := tx.Item(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		items[id] = item
	}

	for _, line := range lines {
		if available := items[line.ItemID].Stock; line.Quantity > available {
			return domain.Order{}, &domain.InsufficientStockError{
				ItemID:    line.ItemID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	snapshots := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		item := items[line.ItemID]
		snapshots = append(snapshots, domain.SnapshotLine(item, line.Quantity))
		if err := item.Take(line.Quantity); err != nil {
			return domain.Order{}, err
		}
		items[line.ItemID] = item
	}
	for _, id := range ids {
		if err := tx.UpdateItem(ctx, items[id]); err != nil {
			return domain.Order{}, err
		}
	}

	return tx.InsertOrder(ctx, domain.NewOrder(snapshots, e.now()))
}

// SetStatus переводит заказ в новый статус по таблице переходов
func (e *OrderEngine) SetStatus(ctx context.Context, orderID int64, status domain.Status) (domain.Order, error) {
	var (
		order domain.Order
		from  domain.Status
		state *transition
	)
	err := e.command(ctx, "set_order_status", func(ctx context.Context) error {
		return e.store.Update(ctx, func(tx Tx) error {
			current, err := tx.Order(ctx, orderID)
			if err != nil {
				return err
			}
			target, err := domain.ParseStatus(string(status))
			if err != nil {
				return err
			}

			now := e.now()
			state = &transition{tx: tx, order: current}
			if _, err := e.machine.Fire(ctx, string(current.Status), fsm.NewEvent(string(target), state).At(now)); err != nil {
				if errors.Is(err, fsm.ErrNoTransition) {
					return core.Wrap(err, core.CodeInvalidTransition,
						fmt.Sprintf("order %d cannot move from %s to %s", orderID, current.Status, target))
				}
				return err
			}

			from = current.Status
			current.Status = target
			current.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, current); err != nil {
				return err
			}
			order = current
			return nil
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordTransition(ctx, string(from), string(order.Status))
	}
	changed := domain.NewOrderStatusChanged(order.ID, from, order.Status, state.restocked, order.UpdatedAt)
	published := []events.Event{changed}
	for _, r := range state.returned {
		published = append(published, domain.NewStockReturned(r.item, r.quantity, changed))
	}
	e.publish(ctx, published...)
	return order, nil
}

// returnStock действие перехода в cancelled: вернуть количества заказа на склад
func (e *OrderEngine) returnStock(ctx context.Context, event fsm.Event) error {
	state, ok := event.Data().(*transition)
	if !ok {
		return core.NewError(core.CodeInvalidArgument, "transition data is missing")
	}

	lines := slices.Clone(state.order.Lines)
	slices.SortFunc(lines, func(a, b domain.OrderLine) int {
		return cmp.Compare(a.ItemID, b.ItemID)
	})

	for _, line := range lines {
		item, err := state.tx.Item(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if err := item.Receive(line.Quantity); err != nil {
			return err
		}
		if err := state.tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		state.returned = append(state.returned, returnedStock{item: item, quantity: line.Quantity})
	}
	state.restocked = true
	return nil
}

// Pay переводит заказ в paid
func (e *OrderEngine) Pay(ctx context.Context, orderID int64) (domain.Order, error) {
	return e.SetStatus(ctx, orderID, domain.StatusPaid)
}

// Ship переводит заказ в shipped
func (e *OrderEngine) Ship(ctx context.Context, orderID int64) (domain.Order, error) {
	return e.SetStatus(ctx, orderID, domain.StatusShipped)
}

// Deliver переводит заказ в delivered
func (e *OrderEngine) Deliver(ctx context.Context, orderID int64) (domain.Order, error) {
	return e.SetStatus(ctx, orderID, domain.StatusDelivered)
}

// Cancel отменяет заказ
func (e *OrderEngine) Cancel(ctx context.Context, orderID int64) (domain.Order, error) {
	return e.SetStatus(ctx, orderID, domain.StatusCancelled)
}

// Transitions статусы, в которые можно перейти из status
func (e *OrderEngine) Transitions(status domain.Status) []domain.Status {
	var result []domain.Status
	for _, t := range e.machine.Transitions(string(status)) {
		result = append(result, domain.Status(t.To().Name()))
	}
	return result
}

// GetOrder возвращает заказ по ID
func (e *OrderEngine) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	return query(ctx, e.instrumentation, "get_order", func(ctx context.Context) (domain.Order, error) {
		var order domain.Order
		err := e.store.View(ctx, func(tx ReadTx) error {
			var err error
			order, err = tx.Order(ctx, orderID)
			return err
		})
		return order, err
	})
}

// ListOrders лениво перечисляет заказы по возрастанию ID. Каждый обход
// читает свежий снимок.
func (e *OrderEngine) ListOrders(ctx context.Context) iter.Seq2[domain.Order, error] {
	return func(yield func(domain.Order, error) bool) {
		stopped := false
		_, err := query(ctx, e.instrumentation, "list_orders", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.store.View(ctx, func(tx ReadTx) error {
				return tx.Orders(ctx, func(order domain.Order) bool {
					if !yield(order, nil) {
						stopped = true
						return false
					}
					return true
				})
			})
		})
		if err != nil && !stopped {
			yield(domain.Order{}, err)
		}
	}
}
