package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/sportstore/framework/events"
)

// Типы доменных событий
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventStockReceived      = "stock.received"
	EventItemAdded          = "item.added"
)

// Метаданные поступления на склад: причина поступления
const (
	MetadataReason       = "reason"
	ReasonSupply         = "supply"
	ReasonOrderCancelled = "order_cancelled"
)

// OrderAggregateID идентификатор агрегата заказа в событиях
func OrderAggregateID(id int64) string {
	return "order-" + strconv.FormatInt(id, 10)
}

// ItemAggregateID идентификатор агрегата товара в событиях
func ItemAggregateID(id int64) string {
	return "item-" + strconv.FormatInt(id, 10)
}

// OrderPlaced заказ оформлен
type OrderPlaced struct {
	*events.BaseEvent
	OrderID int64           `json:"order_id"`
	Lines   []OrderLine     `json:"lines"`
	Total   decimal.Decimal `json:"total"`
}

// NewOrderPlaced создает событие оформления заказа
func NewOrderPlaced(order Order) *OrderPlaced {
	return &OrderPlaced{
		BaseEvent: events.NewBaseEvent(EventOrderPlaced, OrderAggregateID(order.ID)).At(order.CreatedAt),
		OrderID:   order.ID,
		Lines:     order.Clone().Lines,
		Total:     order.Total,
	}
}

// OrderStatusChanged статус заказа изменен
type OrderStatusChanged struct {
	*events.BaseEvent
	OrderID   int64  `json:"order_id"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	Restocked bool   `json:"restocked,omitempty"`
}

// NewOrderStatusChanged создает событие смены статуса
func NewOrderStatusChanged(orderID int64, from, to Status, restocked bool, at time.Time) *OrderStatusChanged {
	return &OrderStatusChanged{
		BaseEvent: events.NewBaseEvent(EventOrderStatusChanged, OrderAggregateID(orderID)).At(at),
		OrderID:   orderID,
		From:      from,
		To:        to,
		Restocked: restocked,
	}
}

// StockReceived поступление товара на склад
type StockReceived struct {
	*events.BaseEvent
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
	Stock    int   `json:"stock"`
}

// NewStockReceived создает событие поставки
func NewStockReceived(item Item, quantity int) *StockReceived {
	return newStockReceived(item, quantity, ReasonSupply)
}

// NewStockReturned создает событие возврата остатка отмененного заказа.
// Причиной события становится событие отмены cause.
func NewStockReturned(item Item, quantity int, cause events.Event) *StockReceived {
	e := newStockReceived(item, quantity, ReasonOrderCancelled)
	e.WithCausationID(cause.EventID()).At(cause.OccurredAt())
	return e
}

func newStockReceived(item Item, quantity int, reason string) *StockReceived {
	return &StockReceived{
		BaseEvent: events.NewBaseEvent(EventStockReceived, ItemAggregateID(item.ID)).WithMetadata(MetadataReason, reason),
		ItemID:    item.ID,
		Quantity:  quantity,
		Stock:     item.Stock,
	}
}

// ItemAdded товар добавлен в каталог
type ItemAdded struct {
	*events.BaseEvent
	Item Item `json:"item"`
}

// NewItemAdded создает событие добавления товара
func NewItemAdded(item Item) *ItemAdded {
	return &ItemAdded{
		BaseEvent: events.NewBaseEvent(EventItemAdded, ItemAggregateID(item.ID)),
		Item:      item,
	}
}
