package domain

import "math"

// MergeLine добавляет quantity товара itemID к строкам корзины. Существующая
// строка увеличивается, новая дописывается в конец. Суммарное количество не
// может превышать available. Исходный срез не изменяется.
func MergeLine(lines []CartLine, itemID int64, quantity, available int) ([]CartLine, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	existing, pos := 0, -1
	for i, line := range lines {
		if line.ItemID == itemID {
			existing, pos = line.Quantity, i
			break
		}
	}
	if quantity > available-existing {
		return nil, &InsufficientStockError{
			ItemID:    itemID,
			Requested: addSaturating(existing, quantity),
			Available: available,
		}
	}

	merged := make([]CartLine, len(lines), len(lines)+1)
	copy(merged, lines)
	if pos < 0 {
		return append(merged, CartLine{ItemID: itemID, Quantity: quantity}), nil
	}
	merged[pos].Quantity = existing + quantity
	return merged, nil
}

// ReleaseLines убирает из корзины оформленные количества. Строка, в которую
// после чтения добавили товар, остается с разницей; порядок строк сохраняется.
func ReleaseLines(lines, committed []CartLine) []CartLine {
	taken := make(map[int64]int, len(committed))
	for _, line := range committed {
		taken[line.ItemID] += line.Quantity
	}

	rest := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > taken[line.ItemID] {
			rest = append(rest, CartLine{ItemID: line.ItemID, Quantity: line.Quantity - taken[line.ItemID]})
		}
	}
	return rest
}

func addSaturating(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}
