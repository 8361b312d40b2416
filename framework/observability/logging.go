package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig конфигурация структурированного логирования
type LoggingConfig struct {
	Level          string // debug, info, warn, error
	ServiceName    string
	ServiceVersion string
	Exporter       string // "none" или "otlp"
	Endpoint       string // host:port OTLP/HTTP коллектора
	Output         io.Writer
}

// LoggingManager владеет zap логгером и провайдером OTel логов
type LoggingManager struct {
	logger   *zap.Logger
	provider *sdklog.LoggerProvider
}

// NewLoggingManager создает логгер: JSON в Output плюс мост в OTel log pipeline
func NewLoggingManager(ctx context.Context, config LoggingConfig) (*LoggingManager, error) {
	level, err := zapcore.ParseLevel(defaultString(config.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(output)),
		level,
	)

	manager := &LoggingManager{}
	core := consoleCore

	switch config.Exporter {
	case "", "none":
	case "otlp":
		provider, err := newLoggerProvider(ctx, config)
		if err != nil {
			return nil, err
		}
		global.SetLoggerProvider(provider)
		manager.provider = provider

		otelCore := otelzap.NewCore(instrumentationName,
			otelzap.WithLoggerProvider(provider),
		)
		core = zapcore.NewTee(otelCore, consoleCore)
	default:
		return nil, fmt.Errorf("unknown log exporter: %s", config.Exporter)
	}

	manager.logger = zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", config.ServiceName)),
	)
	return manager, nil
}

func newLoggerProvider(ctx context.Context, config LoggingConfig) (*sdklog.LoggerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlploghttp.Option{otlploghttp.WithInsecure()}
	if config.Endpoint != "" {
		opts = append(opts, otlploghttp.WithEndpoint(config.Endpoint))
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportTimeout(30*time.Second),
		)),
	), nil
}

// Logger возвращает сконфигурированный логгер
func (m *LoggingManager) Logger() *zap.Logger {
	return m.logger
}

// Shutdown сбрасывает буферы логгера и останавливает OTel провайдер
func (m *LoggingManager) Shutdown(ctx context.Context) error {
	_ = m.logger.Sync()
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
