package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/sportstore/framework/adapters/transport"
	"github.com/akriventsev/sportstore/framework/observability"
)

// Options служебные маршруты и middleware
type Options struct {
	ServiceName string
	// Validator проверяет запросы /api/v1, nil - без проверки
	Validator *transport.OpenAPIValidator
	Hub       *transport.WebSocketHub
	Health    *observability.HealthRegistry
	// Metrics обработчик Prometheus scrape
	Metrics http.Handler
}

// Mount регистрирует /api/v1 и служебные маршруты /ws/orders, /healthz, /metrics
func Mount(router *gin.Engine, group *gin.RouterGroup, h *Handler, opts Options) {
	group.Use(
		observability.HTTPTracingMiddleware(opts.ServiceName),
		observability.CorrelationIDMiddleware(),
	)
	if opts.Validator != nil {
		group.Use(opts.Validator.Middleware())
	}
	h.Register(group)

	if opts.Hub != nil {
		router.GET("/ws/orders", opts.Hub.Handler())
	}
	if opts.Health != nil {
		router.GET("/healthz", opts.Health.Handler())
	}
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
}
