package repository

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryConfig конфигурация для InMemory репозитория
type InMemoryConfig struct {
	// MaxEntities максимальное количество сущностей (0 = без ограничений)
	MaxEntities int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{}
}

// InMemoryRepository generic in-memory репозиторий
type InMemoryRepository[T Entity] struct {
	config   InMemoryConfig
	entities map[string]T
	mu       sync.RWMutex
}

// NewInMemoryRepository создает новый in-memory репозиторий
func NewInMemoryRepository[T Entity](config InMemoryConfig) *InMemoryRepository[T] {
	return &InMemoryRepository[T]{
		config:   config,
		entities: make(map[string]T),
	}
}

// Save сохраняет entity
func (r *InMemoryRepository[T]) Save(ctx context.Context, entity T) error {
	id := entity.ID()
	if id == "" {
		return errEmptyID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[id]; !exists && r.config.MaxEntities > 0 && len(r.entities) >= r.config.MaxEntities {
		return fmt.Errorf("repository limit reached: max %d entities", r.config.MaxEntities)
	}
	r.entities[id] = entity
	return nil
}

// FindByID находит entity по ID
func (r *InMemoryRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, exists := r.entities[id]
	if !exists {
		var zero T
		return zero, errNotFound(id)
	}
	return entity, nil
}

// FindAll возвращает все entities
func (r *InMemoryRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.Find(ctx, func(T) bool { return true })
}

// Find находит entities по предикату
func (r *InMemoryRepository[T]) Find(ctx context.Context, predicate func(T) bool) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]T, 0, len(r.entities))
	for _, entity := range r.entities {
		if predicate(entity) {
			results = append(results, entity)
		}
	}
	return results, nil
}

// Delete удаляет entity
func (r *InMemoryRepository[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[id]; !exists {
		return errNotFound(id)
	}
	delete(r.entities, id)
	return nil
}

// Count возвращает количество entities
func (r *InMemoryRepository[T]) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities), nil
}
