package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/events"
)

// WebSocketConfig конфигурация для WebSocket hub
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	SendBuffer      int // размер очереди исходящих сообщений клиента
	// Encoder сериализует событие; по умолчанию json.Marshal события
	Encoder func(events.Event) ([]byte, error)
}

// DefaultWebSocketConfig возвращает конфигурацию WebSocket по умолчанию
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageSize:  512,
		SendBuffer:      64,
	}
}

// WebSocketHub рассылает события всем подключенным клиентам. Клиент только
// слушает: входящие сообщения читаются и отбрасываются ради control frames.
type WebSocketHub struct {
	config   WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	wg       sync.WaitGroup
	closed   bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewWebSocketHub создает новый hub
func NewWebSocketHub(config WebSocketConfig, logger *zap.Logger) *WebSocketHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Encoder == nil {
		config.Encoder = func(event events.Event) ([]byte, error) { return json.Marshal(event) }
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 64
	}

	return &WebSocketHub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger.With(zap.String("component", "websocket")),
		clients: make(map[*wsClient]struct{}),
	}
}

// Name возвращает имя компонента (реализация core.Component)
func (h *WebSocketHub) Name() string {
	return "websocket"
}

// Type возвращает тип компонента (реализация core.Component)
func (h *WebSocketHub) Type() core.ComponentType {
	return core.ComponentTypeTransport
}

// Handler возвращает gin handler, переводящий соединение в WebSocket
func (h *WebSocketHub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ServeHTTP реализует http.Handler
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, h.config.SendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	go h.writeLoop(client)
	go h.readLoop(client)
}

func (h *WebSocketHub) readLoop(client *wsClient) {
	defer h.wg.Done()
	defer h.remove(client)

	conn := client.conn
	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHub) writeLoop(client *wsClient) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHub) remove(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
	h.mu.Unlock()
}

// Clients возвращает количество подключенных клиентов
func (h *WebSocketHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast ставит сообщение в очередь каждого клиента. Клиент с переполненной
// очередью отключается.
func (h *WebSocketHub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			client.close()
			h.logger.Warn("websocket client too slow, disconnected")
		}
	}
}

// Publish реализует events.EventPublisher
func (h *WebSocketHub) Publish(ctx context.Context, event events.Event) error {
	data, err := h.config.Encoder(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// Shutdown закрывает все соединения и ждет завершения их горутин
func (h *WebSocketHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
