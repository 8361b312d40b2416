// Package config загружает конфигурацию сервиса точки продаж из переменных
// окружения с префиксом POS_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akriventsev/sportstore/framework/core"
)

// Хранилища каталога и заказов
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongoDB  = "mongodb"
)

// Хранилища корзин
const (
	CartStoreMemory = "memory"
	CartStoreRedis  = "redis"
)

// Config конфигурация pos-server
type Config struct {
	Environment string
	LogLevel    string

	Server struct {
		Port              string
		OpenAPIValidation bool
	}

	Store    string
	Postgres struct {
		URL string
	}
	MongoDB struct {
		URI      string
		Database string
	}

	CartStore string
	Redis     struct {
		Addr     string
		Password string
		DB       int
		CartTTL  time.Duration
	}

	Kafka struct {
		Brokers     []string
		TopicPrefix string
	}
	NATS struct {
		URL           string
		SubjectPrefix string
	}

	Tracing struct {
		Exporter     string
		Endpoint     string
		SamplingRate float64
	}
	MetricsEnabled bool

	RestockOnCancel bool
	SeedSampleData  bool
}

// Load читает конфигурацию из окружения и проверяет ее
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{}

	cfg.Environment = getEnv("POS_ENVIRONMENT", "development")
	cfg.LogLevel = getEnv("POS_LOG_LEVEL", "info")

	cfg.Server.Port = getEnv("POS_HTTP_PORT", "8080")
	cfg.Server.OpenAPIValidation = p.flag("POS_OPENAPI_VALIDATION", true)

	cfg.Store = strings.ToLower(getEnv("POS_STORE", StoreMemory))
	cfg.Postgres.URL = getEnv("POS_DATABASE_URL", "")
	cfg.MongoDB.URI = getEnv("POS_MONGO_URI", "")
	cfg.MongoDB.Database = getEnv("POS_MONGO_DATABASE", "sportstore")

	cfg.CartStore = strings.ToLower(getEnv("POS_CART_STORE", CartStoreMemory))
	cfg.Redis.Addr = getEnv("POS_REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("POS_REDIS_PASSWORD", "")
	cfg.Redis.DB = p.integer("POS_REDIS_DB", 0)
	cfg.Redis.CartTTL = p.duration("POS_CART_TTL", 24*time.Hour)

	cfg.Kafka.Brokers = splitList(getEnv("POS_KAFKA_BROKERS", ""))
	cfg.Kafka.TopicPrefix = getEnv("POS_KAFKA_TOPIC_PREFIX", "pos")
	cfg.NATS.URL = getEnv("POS_NATS_URL", "")
	cfg.NATS.SubjectPrefix = getEnv("POS_NATS_SUBJECT_PREFIX", "pos")

	cfg.Tracing.Exporter = strings.ToLower(getEnv("POS_TRACING_EXPORTER", "none"))
	cfg.Tracing.Endpoint = getEnv("POS_TRACING_ENDPOINT", "")
	cfg.Tracing.SamplingRate = p.ratio("POS_TRACING_SAMPLING", 1.0)
	cfg.MetricsEnabled = p.flag("POS_METRICS_ENABLED", true)

	cfg.RestockOnCancel = p.flag("POS_RESTOCK_ON_CANCEL", false)
	cfg.SeedSampleData = p.flag("POS_SEED_SAMPLE_DATA", false)

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.URL == "" {
			return invalid("POS_DATABASE_URL is required for postgres store")
		}
	case StoreMongoDB:
		if c.MongoDB.URI == "" {
			return invalid("POS_MONGO_URI is required for mongodb store")
		}
		if c.MongoDB.Database == "" {
			return invalid("POS_MONGO_DATABASE cannot be empty")
		}
	default:
		return invalid(fmt.Sprintf("unknown store %q", c.Store))
	}

	switch c.CartStore {
	case CartStoreMemory:
	case CartStoreRedis:
		if c.Redis.Addr == "" {
			return invalid("POS_REDIS_ADDR is required for redis cart store")
		}
	default:
		return invalid(fmt.Sprintf("unknown cart store %q", c.CartStore))
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp", "zipkin", "jaeger":
	default:
		return invalid(fmt.Sprintf("unknown tracing exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return invalid("POS_TRACING_SAMPLING must be between 0 and 1")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		return invalid(fmt.Sprintf("invalid POS_HTTP_PORT %q", c.Server.Port))
	}
	return nil
}

// TracingEnabled включен ли экспорт трейсов
func (c *Config) TracingEnabled() bool {
	return c.Tracing.Exporter != "none"
}

func invalid(message string) error {
	return core.NewError(core.CodeInvalidConfig, message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parser запоминает первую ошибку разбора
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = core.Wrap(err, core.CodeInvalidConfig, fmt.Sprintf("invalid %s %q", key, value))
	}
}

func (p *parser) flag(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return value
}

func (p *parser) integer(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return value
}

func (p *parser) ratio(key string, defaultValue float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return value
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return value
}
