// Package api HTTP интерфейс точки продаж: REST /api/v1 поверх
// application.POS со встроенной OpenAPI схемой.
package api

import (
	_ "embed"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/adapters/transport"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
)

// SessionHeader заголовок с идентификатором корзины
const SessionHeader = "X-Session-ID"

// OpenAPI документ API, по которому проверяются запросы
//
//go:embed openapi.yaml
var OpenAPI []byte

// NewValidator валидатор запросов по встроенному документу
func NewValidator(logger *zap.Logger) (*transport.OpenAPIValidator, error) {
	options := transport.DefaultValidationOptions()
	options.Logger = logger
	return transport.NewOpenAPIValidator(OpenAPI, options)
}

// Handler обработчики /api/v1
type Handler struct {
	pos    *application.POS
	logger *zap.Logger
}

// NewHandler создает обработчики
func NewHandler(pos *application.POS, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pos: pos, logger: logger.With(zap.String("component", "api"))}
}

// Register регистрирует маршруты в группе /api/v1
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/items", h.searchItems)
	r.POST("/items", h.addItem)
	r.GET("/items/:id", h.findItem)
	r.POST("/items/:id/supply", h.receiveSupply)

	r.GET("/cart", h.viewCart)
	r.POST("/cart/lines", h.addToCart)
	r.DELETE("/cart", h.clearCart)

	r.POST("/orders", h.commit)
	r.GET("/orders", h.listOrders)
	r.GET("/orders/:id", h.getOrder)
	r.PUT("/orders/:id/status", h.setStatus)

	r.GET("/reports/sales", h.salesReport)

	r.GET("/employees", h.listEmployees)
	r.POST("/employees", h.hire)
	r.DELETE("/employees/:employee_id", h.dismiss)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) cart(c *gin.Context) *application.Cart {
	return h.pos.Carts.Session(c.GetHeader(SessionHeader))
}

func (h *Handler) searchItems(c *gin.Context) {
	items := make([]itemResponse, 0)
	for item, err := range h.pos.Catalog.Search(c.Request.Context(), c.Query("q")) {
		if err != nil {
			writeError(c, err)
			return
		}
		items = append(items, newItemResponse(item))
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.pos.Catalog.AddItem(c.Request.Context(), req.Name, req.Category, req.Price, req.Stock)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newItemResponse(item))
}

func (h *Handler) findItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.pos.Catalog.Find(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newItemResponse(item))
}

func (h *Handler) receiveSupply(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req supplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.pos.Catalog.ReceiveSupply(c.Request.Context(), id, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newItemResponse(item))
}

func (h *Handler) viewCart(c *gin.Context) {
	view, err := h.cart(c).View(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(view))
}

func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cart := h.cart(c)
	if err := cart.Add(c.Request.Context(), req.ItemID, req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	view, err := cart.View(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(view))
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cart(c).Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) commit(c *gin.Context) {
	order, err := h.pos.Orders.Commit(c.Request.Context(), h.cart(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.order(order))
}

func (h *Handler) order(order domain.Order) orderResponse {
	return newOrderResponse(order, h.pos.Orders.Transitions(order.Status))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders := make([]orderResponse, 0)
	for order, err := range h.pos.Orders.ListOrders(c.Request.Context()) {
		if err != nil {
			writeError(c, err)
			return
		}
		orders = append(orders, h.order(order))
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.pos.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.order(order))
}

func (h *Handler) setStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.pos.Orders.SetStatus(c.Request.Context(), id, domain.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.order(order))
}

func (h *Handler) salesReport(c *gin.Context) {
	report, err := h.pos.Reports.Report(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newReportResponse(report))
}

func (h *Handler) listEmployees(c *gin.Context) {
	employees, err := h.pos.Staff.Employees(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]employeeResponse, 0, len(employees))
	for _, e := range employees {
		resp = append(resp, newEmployeeResponse(e))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) hire(c *gin.Context) {
	var req hireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	employee, err := h.pos.Staff.Hire(c.Request.Context(), req.Name, req.Position, req.Salary)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newEmployeeResponse(employee))
}

func (h *Handler) dismiss(c *gin.Context) {
	if err := h.pos.Staff.Dismiss(c.Request.Context(), c.Param("employee_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
