// Package migrations предоставляет обертку над goose для управления миграциями схемы базы данных.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// MigrationStatus представляет статус миграции
type MigrationStatus struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
	Status    string // "pending", "applied"
}

// Runner применяет SQL миграции из fs.FS (обычно embed.FS)
type Runner struct {
	provider *goose.Provider
}

// NewRunner создает Runner для PostgreSQL. Миграции читаются из корня fsys;
// конкурентные запуски сериализуются advisory lock'ом.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("failed to create migration locker: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys,
		goose.WithSessionLocker(locker),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up применяет все pending миграции
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("failed to run migrations: %w", err)
	}
	return len(results), nil
}

// UpSteps применяет не более steps pending миграций
func (r *Runner) UpSteps(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return r.Up(ctx)
	}

	applied := 0
	for ; applied < steps; applied++ {
		if _, err := r.provider.UpByOne(ctx); err != nil {
			if errors.Is(err, goose.ErrNoNextVersion) {
				break
			}
			return applied, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return applied, nil
}

// Down откатывает steps последних миграций
func (r *Runner) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	rolledBack := 0
	for ; rolledBack < steps; rolledBack++ {
		if _, err := r.provider.Down(ctx); err != nil {
			if errors.Is(err, goose.ErrNoNextVersion) {
				break
			}
			return rolledBack, fmt.Errorf("failed to rollback migration: %w", err)
		}
	}
	return rolledBack, nil
}

// Status возвращает статус всех миграций в порядке версий
func (r *Runner) Status(ctx context.Context) ([]MigrationStatus, error) {
	list, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(list))
	for _, st := range list {
		status := MigrationStatus{
			Version: st.Source.Version,
			Name:    st.Source.Path,
			Status:  string(st.State),
		}
		if st.State == goose.StateApplied {
			appliedAt := st.AppliedAt
			status.AppliedAt = &appliedAt
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Version < statuses[j].Version })
	return statuses, nil
}

// Version возвращает текущую версию схемы
func (r *Runner) Version(ctx context.Context) (int64, error) {
	version, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// Versions возвращает версии миграций, найденных в fsys, без подключения к БД
func Versions(fsys fs.FS) ([]int64, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var versions []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, err := goose.NumericComponent(entry.Name())
		if err != nil {
			continue
		}
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
