package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/domain"
	"github.com/akriventsev/sportstore/internal/infrastructure/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.RunStore(t, func(t *testing.T) application.Store { return NewStore() })
}

func TestCartStore_Contract(t *testing.T) {
	storetest.RunCartStore(t, func(t *testing.T) application.CartStore { return NewCartStore() })
}

func TestStore_RollbackKeepsIDCounter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Update(ctx, func(tx application.Tx) error {
		_, err := tx.InsertItem(ctx, domain.Item{Name: "Ghost"})
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var item domain.Item
	require.NoError(t, store.Update(ctx, func(tx application.Tx) error {
		item, err = tx.InsertItem(ctx, domain.Item{Name: "Ball"})
		return err
	}))
	assert.Equal(t, int64(1), item.ID)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx application.Tx) error {
		_, err := tx.InsertItem(ctx, domain.Item{Name: "Ball", Stock: 3})
		return err
	}))

	err := store.View(ctx, func(tx application.ReadTx) error {
		require.NoError(t, store.Update(ctx, func(tx application.Tx) error {
			item, err := tx.Item(ctx, 1)
			if err != nil {
				return err
			}
			item.Stock = 0
			return tx.UpdateItem(ctx, item)
		}))

		item, err := tx.Item(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, item.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore()
	assert.ErrorIs(t, store.View(ctx, func(application.ReadTx) error { return nil }), context.Canceled)
	assert.ErrorIs(t, store.Update(ctx, func(application.Tx) error { return nil }), context.Canceled)
}
