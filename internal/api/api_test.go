package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/sportstore/framework/adapters/repository"
	"github.com/akriventsev/sportstore/framework/observability"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
	"github.com/akriventsev/sportstore/internal/infrastructure/memory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type apiError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		ItemID    int64  `json:"item_id"`
		Requested int    `json:"requested"`
		Available int    `json:"available"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	pos := application.New(memory.NewStore(), memory.NewCartStore(),
		repository.NewInMemoryRepository[domain.Employee](repository.DefaultInMemoryConfig()),
		application.Config{Clock: func() time.Time { return now }},
	)

	validator, err := NewValidator(nil)
	require.NoError(t, err)

	health := observability.NewHealthRegistry()
	health.Register(observability.NewFuncHealthCheck("store", func(ctx context.Context) error { return nil }))

	router := gin.New()
	Mount(router, router.Group("/api/v1"), NewHandler(pos, nil), Options{
		ServiceName: "pos-test",
		Validator:   validator,
		Health:      health,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	})
	return router
}

func do(t *testing.T, router http.Handler, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func addBall(t *testing.T, router http.Handler) itemResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/items", "", map[string]any{
		"name": "Ball", "category": "Football", "price": "24.50", "stock": 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[itemResponse](t, w)
}

func TestAPI_CheckoutFlow(t *testing.T) {
	router := newTestRouter(t)

	ball := addBall(t, router)
	assert.Equal(t, int64(1), ball.ID)
	assert.Equal(t, "24.50", ball.Price)

	w := do(t, router, http.MethodPost, "/api/v1/cart/lines", "till-1", map[string]any{"item_id": ball.ID, "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cart := decode[cartResponse](t, w)
	assert.Equal(t, "till-1", cart.Session)
	assert.Equal(t, "122.50", cart.Total)

	w = do(t, router, http.MethodPost, "/api/v1/orders", "till-1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[orderResponse](t, w)
	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, "122.50", order.Total)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.ElementsMatch(t, []string{"paid", "cancelled"}, order.Next)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "24.50", order.Lines[0].UnitPrice)

	w = do(t, router, http.MethodGet, "/api/v1/items/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 15, decode[itemResponse](t, w).Stock)

	w = do(t, router, http.MethodGet, "/api/v1/cart", "till-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[cartResponse](t, w).Lines)

	w = do(t, router, http.MethodPost, "/api/v1/cart/lines", "till-1", map[string]any{"item_id": 1, "quantity": 999})
	require.Equal(t, http.StatusConflict, w.Code)
	shortage := decode[apiError](t, w)
	assert.Equal(t, "INSUFFICIENT_STOCK", shortage.Error.Code)
	assert.Equal(t, int64(1), shortage.Error.ItemID)
	assert.Equal(t, 999, shortage.Error.Requested)
	assert.Equal(t, 15, shortage.Error.Available)
}

func TestAPI_SessionsAreSeparate(t *testing.T) {
	router := newTestRouter(t)
	addBall(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/cart/lines", "a", map[string]any{"item_id": 1, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/cart", "b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[cartResponse](t, w).Lines)

	w = do(t, router, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, application.DefaultSession, decode[cartResponse](t, w).Session)

	w = do(t, router, http.MethodDelete, "/api/v1/cart", "a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAPI_EmptyCart(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/orders", "nobody", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "EMPTY_CART", decode[apiError](t, w).Error.Code)
}

func TestAPI_StatusTransitions(t *testing.T) {
	router := newTestRouter(t)
	addBall(t, router)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/v1/cart/lines", "s", map[string]any{"item_id": 1, "quantity": 1}).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/orders", "s", nil).Code)

	w := do(t, router, http.MethodPut, "/api/v1/orders/1/status", "", map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StatusPaid, decode[orderResponse](t, w).Status)

	w = do(t, router, http.MethodPut, "/api/v1/orders/1/status", "", map[string]any{"status": "paid"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[apiError](t, w).Error.Code)

	w = do(t, router, http.MethodPut, "/api/v1/orders/1/status", "", map[string]any{"status": "lost"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decode[apiError](t, w).Error.Code)

	w = do(t, router, http.MethodPut, "/api/v1/orders/7/status", "", map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[[]orderResponse](t, w)
	require.Len(t, orders, 1)
	assert.ElementsMatch(t, []string{"shipped", "cancelled"}, orders[0].Next)

	w = do(t, router, http.MethodGet, "/api/v1/reports/sales", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[reportResponse](t, w)
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, "24.50", report.Revenue)
	assert.Equal(t, statusTotalsResponse{Count: 1, Sum: "24.50"}, report.ByStatus["paid"])
	assert.Equal(t, statusTotalsResponse{Count: 0, Sum: "0.00"}, report.ByStatus["pending"])
}

func TestAPI_CatalogErrors(t *testing.T) {
	router := newTestRouter(t)
	addBall(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/items/42", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[apiError](t, w).Error.Code)

	w = do(t, router, http.MethodGet, "/api/v1/items/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// цена обязана быть строкой
	w = do(t, router, http.MethodPost, "/api/v1/items", "", map[string]any{"name": "Bat", "price": 12})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decode[apiError](t, w).Error.Code)

	w = do(t, router, http.MethodPost, "/api/v1/items", "", map[string]any{"name": "  ", "price": "12"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/items/1/supply", "", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/items/1/supply", "", map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 23, decode[itemResponse](t, w).Stock)
}

func TestAPI_QuantityBounds(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		quantity any
	}{
		{"cart zero", "/api/v1/cart/lines", 0},
		{"cart negative", "/api/v1/cart/lines", -1},
		{"cart above schema maximum", "/api/v1/cart/lines", 1000001},
		{"cart max int", "/api/v1/cart/lines", math.MaxInt64},
		{"supply above schema maximum", "/api/v1/items/1/supply", 1000000001},
		{"supply max int", "/api/v1/items/1/supply", math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)
			addBall(t, router)

			w := do(t, router, http.MethodPost, tt.path, "s", map[string]any{"item_id": 1, "quantity": tt.quantity})
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "INVALID_ARGUMENT", decode[apiError](t, w).Error.Code)

			w = do(t, router, http.MethodGet, "/api/v1/items/1", "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, 20, decode[itemResponse](t, w).Stock)
			w = do(t, router, http.MethodGet, "/api/v1/cart", "s", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, decode[cartResponse](t, w).Lines)
		})
	}
}

func TestAPI_OverflowingQuantityWithoutSchema(t *testing.T) {
	pos := application.New(memory.NewStore(), memory.NewCartStore(),
		repository.NewInMemoryRepository[domain.Employee](repository.DefaultInMemoryConfig()),
		application.Config{},
	)
	router := gin.New()
	Mount(router, router.Group("/api/v1"), NewHandler(pos, nil), Options{ServiceName: "pos-test"})
	addBall(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/cart/lines", "s", map[string]any{"item_id": 1, "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/v1/cart/lines", "s", map[string]any{"item_id": 1, "quantity": math.MaxInt64})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	shortage := decode[apiError](t, w)
	assert.Equal(t, int64(1), shortage.Error.ItemID)
	assert.Equal(t, 20, shortage.Error.Available)

	w = do(t, router, http.MethodPost, "/api/v1/items/1/supply", "", map[string]any{"quantity": math.MaxInt64})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/v1/cart", "s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := decode[cartResponse](t, w).Lines
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAPI_Search(t *testing.T) {
	router := newTestRouter(t)
	addBall(t, router)
	w := do(t, router, http.MethodPost, "/api/v1/items", "", map[string]any{"name": "Gloves", "category": "Boxing", "price": "2100"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/items?q=BOX", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]itemResponse](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, "Gloves", items[0].Name)
	assert.Equal(t, "2100.00", items[0].Price)

	w = do(t, router, http.MethodGet, "/api/v1/items", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]itemResponse](t, w), 2)
}

func TestAPI_Employees(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/employees", "", map[string]any{
		"name": "Ivan Petrov", "position": "Seller", "salary": "45000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	employee := decode[employeeResponse](t, w)
	assert.NotEmpty(t, employee.ID)
	assert.Equal(t, "45000.00", employee.Salary)

	w = do(t, router, http.MethodGet, "/api/v1/employees", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]employeeResponse](t, w), 1)

	w = do(t, router, http.MethodDelete, "/api/v1/employees/"+employee.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodDelete, "/api/v1/employees/"+employee.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_ServiceRoutes(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[observability.HealthCheckResult](t, w).Status)

	w = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")

	w = do(t, router, http.MethodGet, "/api/v1/orders", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestWriteError_HidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, errors.New("connection refused to 10.0.0.5"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[apiError](t, w)
	assert.Equal(t, "INTERNAL", body.Error.Code)
	assert.Equal(t, "internal error", body.Error.Message)
}
