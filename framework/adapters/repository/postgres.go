package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/sportstore/framework/core"
)

// PostgresConfig конфигурация для PostgreSQL репозитория
type PostgresConfig struct {
	TableName  string
	SchemaName string
}

// Validate проверяет корректность конфигурации
func (c PostgresConfig) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("TableName cannot be empty")
	}
	return nil
}

// DefaultPostgresConfig возвращает конфигурацию PostgreSQL по умолчанию
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		SchemaName: "public",
	}
}

// PostgresRepository generic PostgreSQL репозиторий. Сущность хранится как
// JSON документ в колонке data таблицы (id TEXT PRIMARY KEY, data JSONB,
// created_at, updated_at); схема создается миграциями.
type PostgresRepository[T Entity] struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

// NewPostgresRepository создает репозиторий поверх общего пула соединений
func NewPostgresRepository[T Entity](pool *pgxpool.Pool, config PostgresConfig) (*PostgresRepository[T], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	if config.SchemaName == "" {
		config.SchemaName = "public"
	}
	return &PostgresRepository[T]{config: config, pool: pool}, nil
}

// Name возвращает имя компонента (реализация core.Component)
func (p *PostgresRepository[T]) Name() string {
	return "postgres-repository"
}

// Type возвращает тип компонента (реализация core.Component)
func (p *PostgresRepository[T]) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

func (p *PostgresRepository[T]) table() string {
	return pgx.Identifier{p.config.SchemaName, p.config.TableName}.Sanitize()
}

// Save сохраняет entity (INSERT ... ON CONFLICT UPDATE)
func (p *PostgresRepository[T]) Save(ctx context.Context, entity T) error {
	id := entity.ID()
	if id == "" {
		return errEmptyID()
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, p.table())

	if _, err := p.pool.Exec(ctx, query, id, data); err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to save entity")
	}
	return nil
}

// FindByID находит entity по ID
func (p *PostgresRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T

	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", p.table())
	if err := p.pool.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, errNotFound(id)
		}
		return zero, core.Wrap(err, core.CodeStorage, "failed to find entity")
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return zero, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return entity, nil
}

// FindAll возвращает все entities в порядке создания
func (p *PostgresRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT data FROM %s ORDER BY created_at, id", p.table())

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to query entities")
	}

	entities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		var entity T
		var data []byte
		if err := row.Scan(&data); err != nil {
			return entity, err
		}
		err := json.Unmarshal(data, &entity)
		return entity, err
	})
	if err != nil {
		return nil, core.Wrap(err, core.CodeStorage, "failed to read entities")
	}
	return entities, nil
}

// Delete удаляет entity
func (p *PostgresRepository[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.table())

	result, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		return core.Wrap(err, core.CodeStorage, "failed to delete entity")
	}
	if result.RowsAffected() == 0 {
		return errNotFound(id)
	}
	return nil
}
