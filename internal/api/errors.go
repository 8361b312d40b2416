package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/domain"
)

// statusOf HTTP статус для кода ошибки
func statusOf(code string) int {
	switch code {
	case core.CodeInvalidArgument:
		return http.StatusBadRequest
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeInsufficientStock, core.CodeInvalidTransition:
		return http.StatusConflict
	case core.CodeEmptyCart:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает в общем формате {"error": {...}}. Сообщения внутренних
// ошибок наружу не отдаются.
func writeError(c *gin.Context, err error) {
	code := core.CodeOf(err)
	status := statusOf(code)

	body := gin.H{"code": code, "message": err.Error()}
	if status == http.StatusInternalServerError {
		if code == "" {
			body["code"] = "INTERNAL"
		}
		body["message"] = "internal error"
	}

	var shortage *domain.InsufficientStockError
	if errors.As(err, &shortage) {
		body["item_id"] = shortage.ItemID
		body["requested"] = shortage.Requested
		body["available"] = shortage.Available
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, core.NewError(core.CodeInvalidArgument, message))
}
