package domain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/fsm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewItem_Validation(t *testing.T) {
	tests := []struct {
		name  string
		title string
		price string
		stock int
		ok    bool
	}{
		{"valid", "Ball", "12.25", 20, true},
		{"free item", "Sticker", "0", 0, true},
		{"negative price", "Ball", "-1", 1, false},
		{"negative stock", "Ball", "1", -1, false},
		{"blank name", "   ", "1", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := NewItem(tt.title, "Sport", dec(tt.price), tt.stock)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.stock, item.Stock)
				return
			}
			assert.True(t, errors.Is(err, core.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestItem_TakeAndReceive(t *testing.T) {
	item := Item{ID: 1, Name: "Ball", Price: dec("12.25"), Stock: 20}

	require.NoError(t, item.Take(5))
	assert.Equal(t, 15, item.Stock)

	err := item.Take(999)
	var shortage *InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, InsufficientStockError{ItemID: 1, Requested: 999, Available: 15}, *shortage)
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	assert.Equal(t, core.CodeInsufficientStock, core.CodeOf(err))
	assert.Equal(t, 15, item.Stock)

	assert.ErrorIs(t, item.Receive(0), core.ErrInvalidArgument)
	require.NoError(t, item.Receive(10))
	assert.Equal(t, 25, item.Stock)
}

func TestItem_QuantityBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		stock   int
		apply   func(*Item) error
		wantErr error
		want    int
	}{
		{"receive up to max int", 20, func(i *Item) error { return i.Receive(math.MaxInt - 20) }, nil, math.MaxInt},
		{"receive past max int", 20, func(i *Item) error { return i.Receive(math.MaxInt - 19) }, core.ErrInvalidArgument, 20},
		{"receive max int", 20, func(i *Item) error { return i.Receive(math.MaxInt) }, core.ErrInvalidArgument, 20},
		{"receive on full stock", math.MaxInt, func(i *Item) error { return i.Receive(1) }, core.ErrInvalidArgument, math.MaxInt},
		{"receive min int", 20, func(i *Item) error { return i.Receive(math.MinInt) }, core.ErrInvalidArgument, 20},
		{"take zero", 20, func(i *Item) error { return i.Take(0) }, core.ErrInvalidArgument, 20},
		{"take negative", 20, func(i *Item) error { return i.Take(-5) }, core.ErrInvalidArgument, 20},
		{"take min int", 20, func(i *Item) error { return i.Take(math.MinInt) }, core.ErrInvalidArgument, 20},
		{"take max int", 20, func(i *Item) error { return i.Take(math.MaxInt) }, core.ErrInsufficientStock, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Item{ID: 1, Name: "Ball", Price: dec("12.25"), Stock: tt.stock}
			err := tt.apply(&item)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.want, item.Stock)
		})
	}
}

func TestMergeLine(t *testing.T) {
	base := []CartLine{{ItemID: 1, Quantity: 5}, {ItemID: 2, Quantity: 1}}

	tests := []struct {
		name      string
		itemID    int64
		quantity  int
		available int
		want      []CartLine
		wantErr   error
		requested int
	}{
		{"merges existing line", 1, 3, 20, []CartLine{{ItemID: 1, Quantity: 8}, {ItemID: 2, Quantity: 1}}, nil, 0},
		{"appends new line", 3, 2, 20, []CartLine{{ItemID: 1, Quantity: 5}, {ItemID: 2, Quantity: 1}, {ItemID: 3, Quantity: 2}}, nil, 0},
		{"exactly available", 1, 15, 20, []CartLine{{ItemID: 1, Quantity: 20}, {ItemID: 2, Quantity: 1}}, nil, 0},
		{"over available", 1, 16, 20, nil, core.ErrInsufficientStock, 21},
		{"overflowing sum", 1, math.MaxInt, 20, nil, core.ErrInsufficientStock, math.MaxInt},
		{"overflowing sum with max stock", 1, math.MaxInt - 4, math.MaxInt, nil, core.ErrInsufficientStock, math.MaxInt},
		{"max int on new line", 3, math.MaxInt, math.MaxInt, []CartLine{{ItemID: 1, Quantity: 5}, {ItemID: 2, Quantity: 1}, {ItemID: 3, Quantity: math.MaxInt}}, nil, 0},
		{"zero", 1, 0, 20, nil, core.ErrInvalidArgument, 0},
		{"min int", 1, math.MinInt, 20, nil, core.ErrInvalidArgument, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]CartLine(nil), base...)
			got, err := MergeLine(base, tt.itemID, tt.quantity, tt.available)
			assert.Equal(t, before, base)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				var shortage *InsufficientStockError
				if errors.As(err, &shortage) {
					assert.Equal(t, tt.requested, shortage.Requested)
					assert.Equal(t, tt.available, shortage.Available)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReleaseLines(t *testing.T) {
	tests := []struct {
		name      string
		lines     []CartLine
		committed []CartLine
		want      []CartLine
	}{
		{
			name:      "everything committed",
			lines:     []CartLine{{ItemID: 1, Quantity: 2}, {ItemID: 2, Quantity: 1}},
			committed: []CartLine{{ItemID: 1, Quantity: 2}, {ItemID: 2, Quantity: 1}},
			want:      []CartLine{},
		},
		{
			name:      "added after read",
			lines:     []CartLine{{ItemID: 1, Quantity: 5}, {ItemID: 3, Quantity: 1}},
			committed: []CartLine{{ItemID: 1, Quantity: 2}},
			want:      []CartLine{{ItemID: 1, Quantity: 3}, {ItemID: 3, Quantity: 1}},
		},
		{
			name:      "cleared after read",
			lines:     nil,
			committed: []CartLine{{ItemID: 1, Quantity: 2}},
			want:      []CartLine{},
		},
		{
			name:      "cleared and refilled below committed",
			lines:     []CartLine{{ItemID: 1, Quantity: 1}},
			committed: []CartLine{{ItemID: 1, Quantity: 2}},
			want:      []CartLine{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReleaseLines(tt.lines, tt.committed))
		})
	}
}

func TestMatcher(t *testing.T) {
	ball := Item{Name: "Football ball", Category: "Football"}
	gloves := Item{Name: "Adidas gloves", Category: "Boxing"}
	ski := Item{Name: "Лыжи", Category: "ЗИМА"}

	assert.True(t, NewMatcher("").Match(ball))
	assert.True(t, NewMatcher("BALL").Match(ball))
	assert.True(t, NewMatcher("box").Match(gloves))
	assert.False(t, NewMatcher("box").Match(ball))
	assert.True(t, NewMatcher("зима").Match(ski))
	assert.True(t, NewMatcher("лыж").Match(ski))
}

func TestNewOrder_FreezesLines(t *testing.T) {
	item := Item{ID: 1, Name: "Ball", Price: dec("12.25"), Stock: 20}
	lines := []OrderLine{SnapshotLine(item, 10)}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	order := NewOrder(lines, now)
	lines[0].Quantity = 1
	item.Price = dec("99")

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 10, order.Lines[0].Quantity)
	assert.True(t, order.Total.Equal(dec("122.50")), "total %s", order.Total)
	assert.Equal(t, now, order.CreatedAt)
	assert.Equal(t, "122.50", order.Total.StringFixed(2))
}

func TestOrder_Clone(t *testing.T) {
	order := NewOrder([]OrderLine{{ItemID: 1, Name: "Ball", Quantity: 1, UnitPrice: dec("1")}}, time.Now())
	clone := order.Clone()
	clone.Lines[0].Quantity = 7
	assert.Equal(t, 1, order.Lines[0].Quantity)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Paid ")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	_, err = ParseStatus("refunded")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestStatusMachine_Table(t *testing.T) {
	machine := NewStatusMachine(TransitionOptions{})

	allowed := map[Status][]Status{
		StatusPending:   {StatusPaid, StatusCancelled},
		StatusPaid:      {StatusShipped, StatusCancelled},
		StatusShipped:   {StatusDelivered},
		StatusDelivered: nil,
		StatusCancelled: nil,
	}

	for from, targets := range allowed {
		for _, to := range Statuses() {
			want := false
			for _, target := range targets {
				if target == to {
					want = true
				}
			}
			can, err := machine.Can(string(from), fsm.NewEvent(string(to), nil))
			require.NoError(t, err)
			if can != want {
				t.Errorf("transition %s -> %s: got %v, want %v", from, to, can, want)
			}
		}
	}
}

func TestStatusMachine_CancelActions(t *testing.T) {
	var calls int
	machine := NewStatusMachine(TransitionOptions{
		OnCancel: []fsm.Action{fsm.NewNamedAction("count", func(ctx context.Context, event fsm.Event) error {
			calls++
			return nil
		})},
	})

	state, err := machine.Fire(context.Background(), string(StatusPaid), fsm.NewEvent(string(StatusCancelled), nil))
	require.NoError(t, err)
	assert.Equal(t, string(StatusCancelled), state.Name())
	assert.Equal(t, 1, calls)

	_, err = machine.Fire(context.Background(), string(StatusPaid), fsm.NewEvent(string(StatusPaid), nil))
	assert.ErrorIs(t, err, fsm.ErrNoTransition)
	assert.Equal(t, 1, calls)
}

func TestReport(t *testing.T) {
	report := NewReport()
	report.Add(Order{ID: 1, Status: StatusPending, Total: dec("70")})
	report.Add(Order{ID: 2, Status: StatusPaid, Total: dec("100")})
	report.Add(Order{ID: 3, Status: StatusShipped, Total: dec("50")})

	assert.Equal(t, 2, report.Count)
	assert.Equal(t, "150.00", report.Revenue.StringFixed(2))
	assert.Equal(t, 1, report.ByStatus[StatusPending].Count)
	assert.True(t, report.ByStatus[StatusPending].Sum.Equal(dec("70")))
	assert.Len(t, report.ByStatus, 5)
	assert.Equal(t, 0, report.ByStatus[StatusCancelled].Count)
}

func TestNewEmployee(t *testing.T) {
	hired := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e, err := NewEmployee(" Ivan ", "Seller", dec("50000"), hired)
	require.NoError(t, err)
	assert.Equal(t, "Ivan", e.Name)
	assert.NotEmpty(t, e.ID())
	assert.Equal(t, hired, e.HiredAt)

	_, err = NewEmployee("", "Seller", dec("1"), hired)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = NewEmployee("Ivan", "Seller", dec("-1"), hired)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestEvents(t *testing.T) {
	order := NewOrder([]OrderLine{{ItemID: 1, Name: "Ball", Quantity: 2, UnitPrice: dec("1.5")}}, time.Now())
	order.ID = 4

	placed := NewOrderPlaced(order)
	assert.Equal(t, EventOrderPlaced, placed.EventType())
	assert.Equal(t, "order-4", placed.AggregateID())
	assert.Equal(t, order.CreatedAt, placed.OccurredAt())

	data, err := json.Marshal(placed)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"order_id":4,"lines":[{"item_id":1,"name":"Ball","quantity":2,"unit_price":"1.5"}],"total":"3"}`,
		string(data))

	changed := NewOrderStatusChanged(4, StatusPending, StatusPaid, false, time.Now())
	assert.Equal(t, EventOrderStatusChanged, changed.EventType())

	received := NewStockReceived(Item{ID: 3, Stock: 12}, 2)
	assert.Equal(t, "item-3", received.AggregateID())
	reason, _ := received.Metadata().Get(MetadataReason)
	assert.Equal(t, ReasonSupply, reason)
	assert.Empty(t, received.Metadata().CausationID())

	cancelled := NewOrderStatusChanged(4, StatusPaid, StatusCancelled, true, time.Now())
	returned := NewStockReturned(Item{ID: 3, Stock: 14}, 2, cancelled)
	assert.Equal(t, EventStockReceived, returned.EventType())
	assert.Equal(t, cancelled.EventID(), returned.Metadata().CausationID())
	assert.Equal(t, cancelled.OccurredAt(), returned.OccurredAt())
	reason, _ = returned.Metadata().Get(MetadataReason)
	assert.Equal(t, ReasonOrderCancelled, reason)
	assert.Equal(t, EventItemAdded, NewItemAdded(Item{ID: 3}).EventType())
}
