// Package redis хранит корзины покупателей в Redis, чтобы они переживали
// перезапуск сервиса и были общими для нескольких экземпляров. Изменения
// корзины выполняются оптимистичной транзакцией WATCH/MULTI и повторяются при
// конфликте с другим экземпляром.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/domain"
)

// CartConfig конфигурация хранилища корзин
type CartConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL время жизни корзины после последнего изменения, 0 - без ограничения
	TTL time.Duration
}

// DefaultCartConfig возвращает конфигурацию по умолчанию
func DefaultCartConfig() CartConfig {
	return CartConfig{
		Addr:   "localhost:6379",
		Prefix: "pos",
		TTL:    24 * time.Hour,
	}
}

// Validate проверяет корректность конфигурации
func (c CartConfig) Validate() error {
	if c.Addr == "" {
		return core.NewError(core.CodeInvalidConfig, "redis addr cannot be empty")
	}
	if c.TTL < 0 {
		return core.NewError(core.CodeInvalidConfig, "cart ttl cannot be negative")
	}
	return nil
}

// updateAttempts сколько раз Update повторяет транзакцию при конфликте
const updateAttempts = 16

// CartStore реализует application.CartStore. Корзина сессии - хэш
// item_id -> quantity и список item_id в порядке добавления.
type CartStore struct {
	config CartConfig
	client *goredis.Client
}

// NewCartStore подключается к Redis и проверяет соединение
func NewCartStore(ctx context.Context, config CartConfig) (*CartStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.Wrap(err, core.CodeStorage, "failed to connect to redis")
	}
	return &CartStore{config: config, client: client}, nil
}

func (s *CartStore) keys(session string) (quantities, order string) {
	base := fmt.Sprintf("%s:cart:{%s}", s.config.Prefix, session)
	return base + ":qty", base + ":order"
}

// Lines читает порядок и количества в одной транзакции
func (s *CartStore) Lines(ctx context.Context, session string) ([]domain.CartLine, error) {
	qtyKey, orderKey := s.keys(session)

	var (
		order      *goredis.StringSliceCmd
		quantities *goredis.MapStringStringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		order = pipe.LRange(ctx, orderKey, 0, -1)
		quantities = pipe.HGetAll(ctx, qtyKey)
		return nil
	})
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to read cart")
	}
	return parseLines(order.Val(), quantities.Val())
}

func parseLines(order []string, quantities map[string]string) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(order))
	for _, field := range order {
		raw, ok := quantities[field]
		if !ok {
			continue
		}
		itemID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, core.Wrap(err, core.CodeStorage, "corrupted cart item id")
		}
		quantity, err := strconv.Atoi(raw)
		if err != nil {
			return nil, core.Wrap(err, core.CodeStorage, "corrupted cart quantity")
		}
		lines = append(lines, domain.CartLine{ItemID: itemID, Quantity: quantity})
	}
	return lines, nil
}

// Update читает корзину под WATCH и записывает результат fn в MULTI/EXEC.
// Если другой клиент изменил корзину между чтением и записью, EXEC
// отклоняется и попытка повторяется со свежими строками.
func (s *CartStore) Update(ctx context.Context, session string, fn func(lines []domain.CartLine) ([]domain.CartLine, error)) error {
	qtyKey, orderKey := s.keys(session)

	txf := func(tx *goredis.Tx) error {
		order, err := tx.LRange(ctx, orderKey, 0, -1).Result()
		if err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to read cart")
		}
		quantities, err := tx.HGetAll(ctx, qtyKey).Result()
		if err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to read cart")
		}
		lines, err := parseLines(order, quantities)
		if err != nil {
			return err
		}

		updated, err := fn(lines)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, qtyKey, orderKey)
			if len(updated) == 0 {
				return nil
			}
			values := make([]interface{}, 0, 2*len(updated))
			ids := make([]interface{}, 0, len(updated))
			for _, line := range updated {
				field := strconv.FormatInt(line.ItemID, 10)
				values = append(values, field, line.Quantity)
				ids = append(ids, field)
			}
			pipe.HSet(ctx, qtyKey, values...)
			pipe.RPush(ctx, orderKey, ids...)
			if s.config.TTL > 0 {
				pipe.PExpire(ctx, qtyKey, s.config.TTL)
				pipe.PExpire(ctx, orderKey, s.config.TTL)
			}
			return nil
		})
		return err
	}

	for range updateAttempts {
		err := s.client.Watch(ctx, txf, qtyKey, orderKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case core.CodeOf(err) != "":
			return err
		default:
			return core.Wrap(err, core.CodeStorage, "failed to update cart")
		}
	}
	return core.Errorf(core.CodeStorage, "cart %s is changed concurrently, giving up after %d attempts", session, updateAttempts)
}

// Clear удаляет корзину
func (s *CartStore) Clear(ctx context.Context, session string) error {
	qtyKey, orderKey := s.keys(session)
	if err := s.client.Del(ctx, qtyKey, orderKey).Err(); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to clear cart")
	}
	return nil
}

// Ping проверяет доступность Redis
func (s *CartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает соединения
func (s *CartStore) Close() error {
	return s.client.Close()
}
