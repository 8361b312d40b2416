// Package transport предоставляет базовые классы и утилиты для REST и WebSocket транспортов.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/metrics"
)

// RESTConfig конфигурация для REST адаптера
type RESTConfig struct {
	Port            int
	BasePath        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultRESTConfig возвращает конфигурацию REST по умолчанию
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		Port:            8080,
		BasePath:        "/api/v1",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// RESTAdapter HTTP сервер на gin: владеет роутером и жизненным циклом http.Server.
// Маршруты регистрирует приложение через Router/Group.
type RESTAdapter struct {
	config  RESTConfig
	router  *gin.Engine
	server  *http.Server
	logger  *zap.Logger
	metrics *metrics.Metrics
	mu      sync.RWMutex
	running bool
	errCh   chan error
}

// NewRESTAdapter создает новый REST адаптер
func NewRESTAdapter(config RESTConfig, logger *zap.Logger, m *metrics.Metrics) *RESTAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "rest"))

	router := gin.New()
	router.Use(gin.Recovery(), AccessLog(logger))
	if m != nil {
		router.Use(Instrument(m))
	}

	return &RESTAdapter{
		config:  config,
		router:  router,
		logger:  logger,
		metrics: m,
		errCh:   make(chan error, 1),
	}
}

// Router возвращает gin engine для регистрации маршрутов
func (r *RESTAdapter) Router() *gin.Engine {
	return r.router
}

// Group возвращает группу маршрутов с BasePath
func (r *RESTAdapter) Group(handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return r.router.Group(r.config.BasePath, handlers...)
}

// Start запускает адаптер (реализация core.Lifecycle)
func (r *RESTAdapter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("rest adapter already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", r.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", r.config.Port, err)
	}

	r.server = &http.Server{
		Handler:      r.router,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
	}
	r.running = true

	go func() {
		if err := r.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", zap.Error(err))
			r.errCh <- err
		}
	}()

	r.logger.Info("http server started", zap.String("addr", listener.Addr().String()))
	return nil
}

// Errors канал фатальных ошибок сервера
func (r *RESTAdapter) Errors() <-chan error {
	return r.errCh
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (r *RESTAdapter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false

	shutdownCtx, cancel := context.WithTimeout(ctx, r.config.ShutdownTimeout)
	defer cancel()
	return r.server.Shutdown(shutdownCtx)
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (r *RESTAdapter) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Name возвращает имя компонента (реализация core.Component)
func (r *RESTAdapter) Name() string {
	return "rest-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (r *RESTAdapter) Type() core.ComponentType {
	return core.ComponentTypeTransport
}

// AccessLog логирует каждый запрос
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Info("request rejected", fields...)
		default:
			logger.Debug("request served", fields...)
		}
	}
}

// Instrument записывает метрики: GET/HEAD считаются запросами, остальное - командами.
// Имя операции - шаблон маршрута gin.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		query := c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead

		if query {
			m.IncrementActiveQueries(ctx)
			defer m.DecrementActiveQueries(ctx)
		} else {
			m.IncrementActiveCommands(ctx)
			defer m.DecrementActiveCommands(ctx)
		}

		c.Next()

		name := c.FullPath()
		if name == "" {
			return
		}
		name = c.Request.Method + " " + name
		success := c.Writer.Status() < http.StatusInternalServerError
		if query {
			m.RecordQuery(ctx, name, time.Since(start), success)
		} else {
			m.RecordCommand(ctx, name, time.Since(start), success)
		}
	}
}
