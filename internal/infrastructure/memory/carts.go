package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/akriventsev/sportstore/internal/domain"
)

// CartStore корзины в памяти
type CartStore struct {
	mu    sync.Mutex
	carts map[string][]domain.CartLine
}

// NewCartStore создает хранилище корзин
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string][]domain.CartLine)}
}

// Lines возвращает копию строк корзины
func (s *CartStore) Lines(ctx context.Context, session string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.carts[session]), nil
}

// Update применяет fn к копии строк под блокировкой хранилища
func (s *CartStore) Update(ctx context.Context, session string, fn func(lines []domain.CartLine) ([]domain.CartLine, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := fn(slices.Clone(s.carts[session]))
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		delete(s.carts, session)
		return nil
	}
	s.carts[session] = slices.Clone(lines)
	return nil
}

// Clear удаляет корзину
func (s *CartStore) Clear(ctx context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, session)
	return nil
}
