// Package postgres хранит каталог, заказы и сотрудников в PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
)

// Store реализует application.Store.
//
// Update - транзакция READ COMMITTED: товары и заказы, прочитанные внутри
// нее, блокируются SELECT ... FOR UPDATE до фиксации. View - транзакция
// REPEATABLE READ READ ONLY, то есть один снимок на все чтения.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создает хранилище поверх пула соединений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect открывает пул и проверяет соединение
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.Wrap(err, core.CodeStorage, "failed to connect to postgres")
	}
	return pool, nil
}

// Ping проверяет доступность базы
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// View выполняет fn в транзакции только для чтения
func (s *Store) View(ctx context.Context, fn func(tx application.ReadTx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(&readTx{tx: tx})
	})
}

// Update выполняет fn в транзакции записи
func (s *Store) Update(ctx context.Context, fn func(tx application.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&writeTx{readTx: readTx{tx: tx, lock: true}})
	})
}

func (s *Store) run(ctx context.Context, options pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, options)
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to commit transaction")
	}
	return nil
}

const (
	itemColumns = "id, name, category, price, stock"

	orderSelect = `
		SELECT o.id, o.total, o.status, o.created_at, o.updated_at,
		       COALESCE(
		           json_agg(json_build_object(
		               'item_id', l.item_id,
		               'name', l.name,
		               'quantity', l.quantity,
		               'unit_price', l.unit_price
		           ) ORDER BY l.position) FILTER (WHERE l.order_id IS NOT NULL),
		           '[]'
		       )
		FROM orders o
		LEFT JOIN order_lines l ON l.order_id = o.id`
)

type readTx struct {
	tx   pgx.Tx
	lock bool
}

func (r *readTx) forUpdate() string {
	if r.lock {
		return " FOR UPDATE"
	}
	return ""
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.Stock)
	return item, err
}

func (r *readTx) Item(ctx context.Context, id int64) (domain.Item, error) {
	row := r.tx.QueryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1"+r.forUpdate(), id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound(id)
	}
	if err != nil {
		return domain.Item{}, core.Wrap(err, core.CodeStorage, "failed to load item")
	}
	return item, nil
}

func (r *readTx) Items(ctx context.Context, yield func(domain.Item) bool) error {
	rows, err := r.tx.Query(ctx, "SELECT "+itemColumns+" FROM items ORDER BY id")
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to query items")
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to read item")
		}
		if !yield(item) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to read items")
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		lines  []byte
	)
	if err := row.Scan(&order.ID, &order.Total, &status, &order.CreatedAt, &order.UpdatedAt, &lines); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.Status(status)
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return domain.Order{}, fmt.Errorf("failed to decode order lines: %w", err)
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func (r *readTx) Order(ctx context.Context, id int64) (domain.Order, error) {
	if r.lock {
		// FOR UPDATE несовместим с GROUP BY: сначала блокируем строку заказа
		var locked int64
		err := r.tx.QueryRow(ctx, "SELECT id FROM orders WHERE id = $1 FOR UPDATE", id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound(id)
		}
		if err != nil {
			return domain.Order{}, core.Wrap(err, core.CodeStorage, "failed to lock order")
		}
	}

	order, err := scanOrder(r.tx.QueryRow(ctx, orderSelect+" WHERE o.id = $1 GROUP BY o.id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound(id)
	}
	if err != nil {
		return domain.Order{}, core.Wrap(err, core.CodeStorage, "failed to load order")
	}
	return order, nil
}

func (r *readTx) Orders(ctx context.Context, yield func(domain.Order) bool) error {
	rows, err := r.tx.Query(ctx, orderSelect+" GROUP BY o.id ORDER BY o.id")
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to query orders")
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return core.Wrap(err, core.CodeStorage, "failed to read order")
		}
		if !yield(order) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to read orders")
	}
	return nil
}

type writeTx struct {
	readTx
}

func (w *writeTx) InsertItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	err := w.tx.QueryRow(ctx,
		"INSERT INTO items (name, category, price, stock) VALUES ($1, $2, $3, $4) RETURNING id",
		item.Name, item.Category, item.Price, item.Stock,
	).Scan(&item.ID)
	if err != nil {
		return domain.Item{}, core.Wrap(err, core.CodeStorage, "failed to insert item")
	}
	return item, nil
}

func (w *writeTx) UpdateItem(ctx context.Context, item domain.Item) error {
	tag, err := w.tx.Exec(ctx,
		"UPDATE items SET name = $2, category = $3, price = $4, stock = $5 WHERE id = $1",
		item.ID, item.Name, item.Category, item.Price, item.Stock,
	)
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to update item")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound(item.ID)
	}
	return nil
}

func (w *writeTx) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	order = order.Clone()
	err := w.tx.QueryRow(ctx,
		"INSERT INTO orders (total, status, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id",
		order.Total, string(order.Status), order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return domain.Order{}, core.Wrap(err, core.CodeStorage, "failed to insert order")
	}

	batch := &pgx.Batch{}
	for i, line := range order.Lines {
		batch.Queue(
			"INSERT INTO order_lines (order_id, position, item_id, name, quantity, unit_price) VALUES ($1, $2, $3, $4, $5, $6)",
			order.ID, i, line.ItemID, line.Name, line.Quantity, line.UnitPrice,
		)
	}
	if batch.Len() == 0 {
		return order, nil
	}
	if err := w.tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, core.Wrap(err, core.CodeStorage, "failed to insert order lines")
	}
	return order, nil
}

func (w *writeTx) UpdateOrder(ctx context.Context, order domain.Order) error {
	tag, err := w.tx.Exec(ctx,
		"UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1",
		order.ID, string(order.Status), order.UpdatedAt,
	)
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound(order.ID)
	}
	return nil
}

var _ application.Store = (*Store)(nil)
