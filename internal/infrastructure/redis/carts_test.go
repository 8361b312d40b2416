package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/infrastructure/storetest"
)

func TestCartConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultCartConfig().Validate())

	config := DefaultCartConfig()
	config.Addr = ""
	assert.True(t, core.IsCode(config.Validate(), core.CodeInvalidConfig))

	config = DefaultCartConfig()
	config.TTL = -time.Second
	assert.True(t, core.IsCode(config.Validate(), core.CodeInvalidConfig))
}

func TestCartStore_Keys(t *testing.T) {
	s := &CartStore{config: CartConfig{Prefix: "pos"}}
	qty, order := s.keys("abc")
	assert.Equal(t, "pos:cart:{abc}:qty", qty)
	assert.Equal(t, "pos:cart:{abc}:order", order)
}

func TestCartStore_Contract(t *testing.T) {
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POS_TEST_REDIS_ADDR is not set")
	}

	storetest.RunCartStore(t, func(t *testing.T) application.CartStore {
		config := DefaultCartConfig()
		config.Addr = addr
		config.Prefix = "pos-test-" + uuid.NewString()
		config.TTL = time.Minute

		store, err := NewCartStore(context.Background(), config)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
