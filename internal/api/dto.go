package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
)

// money форматирует сумму строкой с двумя знаками после точки
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type itemResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
	Stock    int    `json:"stock"`
}

func newItemResponse(item domain.Item) itemResponse {
	return itemResponse{
		ID:       item.ID,
		Name:     item.Name,
		Category: item.Category,
		Price:    money(item.Price),
		Stock:    item.Stock,
	}
}

type lineResponse struct {
	ItemID    int64  `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type cartResponse struct {
	Session string         `json:"session"`
	Lines   []lineResponse `json:"lines"`
	Total   string         `json:"total"`
}

func newCartResponse(view application.CartView) cartResponse {
	resp := cartResponse{
		Session: view.Session,
		Lines:   make([]lineResponse, 0, len(view.Lines)),
		Total:   money(view.Total),
	}
	for _, line := range view.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: money(line.UnitPrice),
			Subtotal:  money(line.Subtotal),
		})
	}
	return resp
}

type orderResponse struct {
	ID        int64          `json:"id"`
	Lines     []lineResponse `json:"lines"`
	Total     string         `json:"total"`
	Status    domain.Status  `json:"status"`
	Next      []string       `json:"next"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newOrderResponse(order domain.Order, next []domain.Status) orderResponse {
	resp := orderResponse{
		ID:        order.ID,
		Lines:     make([]lineResponse, 0, len(order.Lines)),
		Total:     money(order.Total),
		Status:    order.Status,
		Next:      make([]string, 0, len(next)),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: money(line.UnitPrice),
			Subtotal:  money(line.Subtotal()),
		})
	}
	for _, s := range next {
		resp.Next = append(resp.Next, s.String())
	}
	return resp
}

type statusTotalsResponse struct {
	Count int    `json:"count"`
	Sum   string `json:"sum"`
}

type reportResponse struct {
	Count    int                             `json:"count"`
	Revenue  string                          `json:"revenue"`
	ByStatus map[string]statusTotalsResponse `json:"by_status"`
}

func newReportResponse(report domain.Report) reportResponse {
	resp := reportResponse{
		Count:    report.Count,
		Revenue:  money(report.Revenue),
		ByStatus: make(map[string]statusTotalsResponse, len(report.ByStatus)),
	}
	for status, totals := range report.ByStatus {
		resp.ByStatus[status.String()] = statusTotalsResponse{Count: totals.Count, Sum: money(totals.Sum)}
	}
	return resp
}

type employeeResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Position string    `json:"position"`
	Salary   string    `json:"salary"`
	HiredAt  time.Time `json:"hired_at"`
}

func newEmployeeResponse(e domain.Employee) employeeResponse {
	return employeeResponse{
		ID:       e.EmployeeID,
		Name:     e.Name,
		Position: e.Position,
		Salary:   money(e.Salary),
		HiredAt:  e.HiredAt,
	}
}

type addItemRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
}

type supplyRequest struct {
	Quantity int `json:"quantity"`
}

type addToCartRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type hireRequest struct {
	Name     string          `json:"name"`
	Position string          `json:"position"`
	Salary   decimal.Decimal `json:"salary"`
}
