package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestHealthRegistry_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := NewHealthRegistry()
	registry.Register(NewFuncHealthCheck("store", func(ctx context.Context) error { return nil }))

	router := gin.New()
	router.GET("/healthz", registry.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body HealthCheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["store"].Status)

	registry.Register(NewFuncHealthCheck("cache", func(ctx context.Context) error { return errors.New("connection refused") }))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFuncHealthCheck_NilFunc(t *testing.T) {
	check := NewFuncHealthCheck("broken", nil)
	assert.Error(t, check.Check(context.Background()))
}

func TestLoggingManager_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	manager, err := NewLoggingManager(context.Background(), LoggingConfig{
		Level:       "debug",
		ServiceName: "pos-test",
		Output:      &buf,
	})
	require.NoError(t, err)

	manager.Logger().Info("order committed")
	require.NoError(t, manager.Shutdown(context.Background()))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order committed", entry["msg"])
	assert.Equal(t, "pos-test", entry["service.name"])
}

func TestLoggingManager_InvalidConfig(t *testing.T) {
	_, err := NewLoggingManager(context.Background(), LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLoggingManager(context.Background(), LoggingConfig{Exporter: "syslog"})
	assert.Error(t, err)
}

func TestTracingManager_StdoutExporter(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	tm, err := NewTracingManager(TracingConfig{
		Enabled:      true,
		ServiceName:  "pos-test",
		Exporter:     "stdout",
		Writer:       &buf,
		SamplingRate: 1.0,
	})
	require.NoError(t, err)
	require.NoError(t, tm.Start(context.Background()))
	assert.True(t, tm.IsRunning())

	err = TraceCommand(context.Background(), "commit", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	total, err := TraceQuery(context.Background(), "report", func(ctx context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	require.NoError(t, tm.ForceFlush(context.Background()))
	assert.Contains(t, buf.String(), "command.commit")
	assert.Contains(t, buf.String(), "query.report")

	require.NoError(t, tm.Stop(context.Background()))
	assert.False(t, tm.IsRunning())
}

func TestTracingManager_Disabled(t *testing.T) {
	tm, err := NewTracingManager(TracingConfig{Enabled: false, ServiceName: "pos-test"})
	require.NoError(t, err)
	assert.NotNil(t, tm.Tracer())
	assert.NoError(t, tm.Stop(context.Background()))
}

func TestCorrelationIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(CorrelationIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		seen = ExtractCorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "corr-42", seen)
	assert.Equal(t, "corr-42", w.Header().Get("X-Correlation-ID"))
}

func TestTracingManager_UnknownExporter(t *testing.T) {
	_, err := NewTracingManager(TracingConfig{Enabled: true, Exporter: "smoke-signals"})
	assert.Error(t, err)
}
