package domain

import (
	"fmt"

	"github.com/akriventsev/sportstore/framework/core"
)

// InsufficientStockError запрошено больше, чем есть на складе
type InsufficientStockError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("[%s] insufficient stock for item %d: requested %d, available %d",
		core.CodeInsufficientStock, e.ItemID, e.Requested, e.Available)
}

// ErrorCode реализует core.CodedError
func (e *InsufficientStockError) ErrorCode() string {
	return core.CodeInsufficientStock
}

// Is позволяет сравнивать с core.ErrInsufficientStock
func (e *InsufficientStockError) Is(target error) bool {
	return target == core.ErrInsufficientStock
}

// ErrItemNotFound товар с таким ID не существует
func ErrItemNotFound(id int64) error {
	return core.Errorf(core.CodeNotFound, "item %d not found", id)
}

// ErrOrderNotFound заказ с таким ID не существует
func ErrOrderNotFound(id int64) error {
	return core.Errorf(core.CodeNotFound, "order %d not found", id)
}
