package postgres

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/akriventsev/sportstore/framework/migrations"
)

//go:embed migrations/*.sql
var embedded embed.FS

// EmployeesTable таблица сотрудников для repository.PostgresRepository
const EmployeesTable = "employees"

// Migrations SQL миграции схемы
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewMigrationRunner создает goose runner поверх пула соединений.
// Возвращенная функция закрывает *sql.DB обертку пула.
func NewMigrationRunner(pool *pgxpool.Pool) (*migrations.Runner, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)
	runner, err := migrations.NewRunner(db, Migrations())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return runner, db.Close, nil
}

// Migrate применяет все pending миграции
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	runner, closeDB, err := NewMigrationRunner(pool)
	if err != nil {
		return 0, err
	}
	defer closeDB()
	return runner.Up(ctx)
}
