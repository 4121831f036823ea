package infrastructure

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeOTelMetricsOnly(t *testing.T) {
	logger := NewLogger(io.Discard, "error")
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "salesdash-test",
		ServiceVersion: "test",
		Environment:    "test",
		EnableMetrics:  true,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.Tracer)
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, "run-1", 2*time.Second, nil)
	metrics.RecordStep(ctx, "training", time.Second, true)
	metrics.EpochsTrained.Add(ctx, 10)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "training_runs_total")
	assert.Contains(t, rec.Body.String(), "training_epochs_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTelDisabled(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: "off"}, NewLogger(&bytes.Buffer{}, "error"))
	require.NoError(t, err)

	// no-op instruments are still usable
	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordRun(context.Background(), "run-2", time.Second, assert.AnError)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestNilBusinessMetricsIsSafe(t *testing.T) {
	var m *BusinessMetrics
	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), "x", time.Second, nil)
		m.RecordStep(context.Background(), "x", time.Second, false)
	})
}
