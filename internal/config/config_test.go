package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/sportstore/framework/core"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Server.OpenAPIValidation)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, CartStoreMemory, cfg.CartStore)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CartTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.TracingEnabled())
	assert.False(t, cfg.RestockOnCancel)
	assert.False(t, cfg.SeedSampleData)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("POS_HTTP_PORT", "9090")
	t.Setenv("POS_STORE", "Postgres")
	t.Setenv("POS_DATABASE_URL", "postgres://pos@localhost/pos")
	t.Setenv("POS_CART_STORE", "redis")
	t.Setenv("POS_REDIS_DB", "2")
	t.Setenv("POS_CART_TTL", "30m")
	t.Setenv("POS_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("POS_TRACING_EXPORTER", "otlp")
	t.Setenv("POS_TRACING_SAMPLING", "0.25")
	t.Setenv("POS_RESTOCK_ON_CANCEL", "true")
	t.Setenv("POS_SEED_SAMPLE_DATA", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, CartStoreRedis, cfg.CartStore)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 30*time.Minute, cfg.Redis.CartTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.TracingEnabled())
	assert.InDelta(t, 0.25, cfg.Tracing.SamplingRate, 1e-9)
	assert.True(t, cfg.RestockOnCancel)
	assert.True(t, cfg.SeedSampleData)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad bool":         {"POS_RESTOCK_ON_CANCEL": "sometimes"},
		"bad duration":     {"POS_CART_TTL": "forever"},
		"unknown store":    {"POS_STORE": "sqlite"},
		"postgres w/o url": {"POS_STORE": "postgres"},
		"mongo w/o uri":    {"POS_STORE": "mongodb"},
		"unknown carts":    {"POS_CART_STORE": "memcached"},
		"unknown exporter": {"POS_TRACING_EXPORTER": "carrier-pigeon"},
		"sampling range":   {"POS_TRACING_SAMPLING": "1.5"},
		"bad port":         {"POS_HTTP_PORT": "http"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range env {
				t.Setenv(key, value)
			}
			_, err := Load()
			require.Error(t, err)
			assert.True(t, core.IsCode(err, core.CodeInvalidConfig), "got %v", err)
		})
	}
}
