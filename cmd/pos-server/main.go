// pos-server HTTP сервис точки продаж спортивного магазина.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	adapterevents "github.com/akriventsev/sportstore/framework/adapters/events"
	"github.com/akriventsev/sportstore/framework/adapters/repository"
	"github.com/akriventsev/sportstore/framework/adapters/transport"
	"github.com/akriventsev/sportstore/framework/core"
	"github.com/akriventsev/sportstore/framework/events"
	"github.com/akriventsev/sportstore/framework/metrics"
	"github.com/akriventsev/sportstore/framework/observability"
	"github.com/akriventsev/sportstore/internal/api"
	"github.com/akriventsev/sportstore/internal/application"
	"github.com/akriventsev/sportstore/internal/config"
	"github.com/akriventsev/sportstore/internal/domain"
	"github.com/akriventsev/sportstore/internal/infrastructure/memory"
	"github.com/akriventsev/sportstore/internal/infrastructure/mongodb"
	"github.com/akriventsev/sportstore/internal/infrastructure/postgres"
	"github.com/akriventsev/sportstore/internal/infrastructure/redis"
)

const (
	serviceName     = "pos-server"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pos-server: %v\n", err)
		os.Exit(1)
	}
}

// closer освобождает ресурсы в обратном порядке при остановке
type closer struct {
	logger *zap.Logger
	fns    []namedClose
}

type namedClose struct {
	name string
	fn   func(ctx context.Context) error
}

func (c *closer) add(name string, fn func(ctx context.Context) error) {
	c.fns = append(c.fns, namedClose{name: name, fn: fn})
}

func (c *closer) close(ctx context.Context) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i].fn(ctx); err != nil {
			c.logger.Warn("shutdown step failed", zap.String("step", c.fns[i].name), zap.Error(err))
		}
	}
}

// component адаптер с управляемым жизненным циклом
type component interface {
	core.Component
	core.Lifecycle
}

// start запускает компонент и регистрирует его остановку
func (c *closer) start(ctx context.Context, comp component) error {
	if err := comp.Start(ctx); err != nil {
		return err
	}
	c.add(comp.Name(), comp.Stop)
	c.logger.Debug("component started", zap.String("component", comp.Name()), zap.String("type", string(comp.Type())))
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logExporter := "none"
	if cfg.Tracing.Exporter == "otlp" {
		logExporter = "otlp"
	}
	logging, err := observability.NewLoggingManager(ctx, observability.LoggingConfig{
		Level:          cfg.LogLevel,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Exporter:       logExporter,
		Endpoint:       cfg.Tracing.Endpoint,
	})
	if err != nil {
		return err
	}
	logger := logging.Logger()

	resources := &closer{logger: logger}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		resources.close(shutdownCtx)
		_ = logging.Shutdown(shutdownCtx)
	}()

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		provider, err := metrics.SetupMetrics(&metrics.MetricsConfig{
			ExporterType:  "prometheus",
			ResourceAttrs: map[string]string{"service.name": serviceName},
		})
		if err != nil {
			return err
		}
		resources.add("metrics", func(ctx context.Context) error { return metrics.ShutdownMetrics(ctx, provider) })

		if m, err = metrics.NewMetrics(); err != nil {
			return err
		}
		metricsHandler = promhttp.Handler()
	}

	if cfg.TracingEnabled() {
		tracing, err := observability.NewTracingManager(observability.TracingConfig{
			Enabled:          true,
			ServiceName:      serviceName,
			ServiceVersion:   serviceVersion,
			Exporter:         cfg.Tracing.Exporter,
			ExporterEndpoint: cfg.Tracing.Endpoint,
			SamplingRate:     cfg.Tracing.SamplingRate,
			Environment:      cfg.Environment,
		})
		if err != nil {
			return err
		}
		if err := tracing.Start(ctx); err != nil {
			return err
		}
		resources.add("tracing", tracing.Stop)
	}

	health := observability.NewHealthRegistry()

	store, employees, err := openStore(ctx, cfg, logger, resources, health)
	if err != nil {
		return err
	}
	carts, err := openCartStore(ctx, cfg, resources, health)
	if err != nil {
		return err
	}

	bus := events.NewInMemoryEventBus()

	hubConfig := transport.DefaultWebSocketConfig()
	hubConfig.Encoder = encodeEnvelope
	hub := transport.NewWebSocketHub(hubConfig, logger)
	resources.add("websocket", hub.Shutdown)
	if err := bus.Subscribe(events.AllEvents, adapterevents.NewSinkHandler("websocket", hub, logger)); err != nil {
		return err
	}
	if err := attachBrokers(ctx, cfg, bus, m, logger, resources, health); err != nil {
		return err
	}
	// шина закрывается раньше получателей: дожидается активных публикаций
	resources.add("event-bus", bus.Shutdown)

	pos := application.New(store, carts, employees, application.Config{
		RestockOnCancel: cfg.RestockOnCancel,
		Logger:          logger,
		Metrics:         m,
		Events:          bus,
	})

	if cfg.SeedSampleData {
		seeded, err := pos.SeedSampleData(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed sample data: %w", err)
		}
		logger.Info("sample data", zap.Bool("seeded", seeded))
	}

	port, _ := strconv.Atoi(cfg.Server.Port)
	restConfig := transport.DefaultRESTConfig()
	restConfig.Port = port
	rest := transport.NewRESTAdapter(restConfig, logger, m)

	var validator *transport.OpenAPIValidator
	if cfg.Server.OpenAPIValidation {
		if validator, err = api.NewValidator(logger); err != nil {
			return err
		}
	}
	api.Mount(rest.Router(), rest.Group(), api.NewHandler(pos, logger), api.Options{
		ServiceName: serviceName,
		Validator:   validator,
		Hub:         hub,
		Health:      health,
		Metrics:     metricsHandler,
	})

	if err := resources.start(ctx, rest); err != nil {
		return err
	}

	logger.Info("pos server started",
		zap.String("store", cfg.Store),
		zap.String("cart_store", cfg.CartStore),
		zap.Bool("restock_on_cancel", cfg.RestockOnCancel),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-rest.Errors():
		return err
	}
}

// encodeEnvelope кодирует событие для WebSocket клиентов тем же конвертом,
// что уходит в Kafka и NATS
func encodeEnvelope(event events.Event) ([]byte, error) {
	envelope, err := adapterevents.NewEnvelope(event)
	if err != nil {
		return nil, err
	}
	return envelope.Marshal()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, resources *closer, health *observability.HealthRegistry) (application.Store, repository.Repository[domain.Employee], error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		resources.add("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})

		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied", zap.Int("count", applied))

		employees, err := repository.NewPostgresRepository[domain.Employee](pool, repository.PostgresConfig{TableName: postgres.EmployeesTable})
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool)
		health.Register(observability.NewFuncHealthCheck("postgres", store.Ping))
		return store, employees, nil

	case config.StoreMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoDB.URI)
		if err != nil {
			return nil, nil, err
		}
		resources.add("mongodb", client.Disconnect)

		store, err := mongodb.NewStore(ctx, client, cfg.MongoDB.Database)
		if err != nil {
			return nil, nil, err
		}
		employees, err := repository.NewMongoRepository[domain.Employee](store.Database(), repository.MongoConfig{Collection: mongodb.EmployeesCollection})
		if err != nil {
			return nil, nil, err
		}
		health.Register(observability.NewFuncHealthCheck("mongodb", store.Ping))
		return store, employees, nil

	default:
		return memory.NewStore(), repository.NewInMemoryRepository[domain.Employee](repository.DefaultInMemoryConfig()), nil
	}
}

func openCartStore(ctx context.Context, cfg *config.Config, resources *closer, health *observability.HealthRegistry) (application.CartStore, error) {
	if cfg.CartStore != config.CartStoreRedis {
		return memory.NewCartStore(), nil
	}

	carts, err := redis.NewCartStore(ctx, redis.CartConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   "pos",
		TTL:      cfg.Redis.CartTTL,
	})
	if err != nil {
		return nil, err
	}
	resources.add("redis", func(context.Context) error { return carts.Close() })
	health.Register(observability.NewFuncHealthCheck("redis", carts.Ping))
	return carts, nil
}

// attachBrokers подписывает Kafka и NATS публикаторы на все события шины
func attachBrokers(ctx context.Context, cfg *config.Config, bus *events.InMemoryEventBus, m *metrics.Metrics, logger *zap.Logger, resources *closer, health *observability.HealthRegistry) error {
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaConfig := adapterevents.DefaultKafkaEventConfig()
		kafkaConfig.Brokers = cfg.Kafka.Brokers
		kafkaConfig.TopicPrefix = cfg.Kafka.TopicPrefix
		kafkaConfig.Metrics = m

		publisher, err := adapterevents.NewKafkaEventAdapter(kafkaConfig)
		if err != nil {
			return err
		}
		if err := resources.start(ctx, publisher); err != nil {
			return err
		}
		if err := bus.Subscribe(events.AllEvents, adapterevents.NewSinkHandler("kafka", publisher, logger)); err != nil {
			return err
		}
	}

	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		resources.add("nats", func(context.Context) error { return conn.Drain() })
		health.Register(observability.NewFuncHealthCheck("nats", func(context.Context) error {
			if !conn.IsConnected() {
				return errors.New("nats is not connected")
			}
			return nil
		}))

		natsConfig := adapterevents.DefaultNATSEventConfig()
		natsConfig.SubjectPrefix = cfg.NATS.SubjectPrefix
		natsConfig.Metrics = m

		publisher, err := adapterevents.NewNATSEventAdapter(conn, natsConfig)
		if err != nil {
			return err
		}
		if err := resources.start(ctx, publisher); err != nil {
			return err
		}
		if err := bus.Subscribe(events.AllEvents, adapterevents.NewSinkHandler("nats", publisher, logger)); err != nil {
			return err
		}
	}
	return nil
}
