package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"salesdash/internal/config"
)

const (
	ServiceVersion = config.AppVersion
	MeterName      = "salesdash"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// OTelConfigFrom maps the application observability settings
func OTelConfigFrom(cfg config.ObservabilityConfig) *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return &OTelConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		EnableMetrics:  cfg.MetricsEnabled,
		EnableTracing:  cfg.TracingEnabled,
		SampleRatio:    1.0,
	}
}

// InitializeOTel sets up tracing (stdout exporter) and metrics (Prometheus
// exporter on a private registry). Disabled signals fall back to no-op
// implementations so callers never need nil checks.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = OTelConfigFrom(config.Default().Observability)
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{
		Tracer:         tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:          noop.NewMeterProvider().Meter(MeterName),
		PrometheusHTTP: http.NotFoundHandler(),
		Logger:         logger,
	}

	if cfg.EnableTracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics {
		registry := promclient.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// BusinessMetrics holds the application-specific instruments
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	RunsTotal        metric.Int64Counter
	RunDuration      metric.Float64Histogram
	ActiveRuns       metric.Int64UpDownCounter
	StepDuration     metric.Float64Histogram
	EpochsTrained    metric.Int64Counter
	RowsPreprocessed metric.Int64Counter
	ValidationLoss   metric.Float64Histogram
	BytesDownloaded  metric.Int64Counter
}

// CreateBusinessMetrics registers every instrument on meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.RunsTotal, err = meter.Int64Counter("training_runs_total",
		metric.WithDescription("Training runs by final status")); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram("training_run_duration_seconds",
		metric.WithDescription("Wall time of a full training run"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ActiveRuns, err = meter.Int64UpDownCounter("training_active_runs",
		metric.WithDescription("Runs currently executing")); err != nil {
		return nil, err
	}
	if m.StepDuration, err = meter.Float64Histogram("training_step_duration_seconds",
		metric.WithDescription("Duration of a single pipeline step"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.EpochsTrained, err = meter.Int64Counter("training_epochs_total",
		metric.WithDescription("Epochs completed across all runs")); err != nil {
		return nil, err
	}
	if m.RowsPreprocessed, err = meter.Int64Counter("preprocessing_rows_total",
		metric.WithDescription("Rows emitted by the feature pipeline")); err != nil {
		return nil, err
	}
	if m.ValidationLoss, err = meter.Float64Histogram("training_final_val_loss",
		metric.WithDescription("Validation MSE after the last epoch")); err != nil {
		return nil, err
	}
	if m.BytesDownloaded, err = meter.Int64Counter("dataset_downloaded_bytes",
		metric.WithDescription("Bytes fetched by dataset acquisition"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRun records the outcome of a finished run
func (m *BusinessMetrics) RecordRun(ctx context.Context, runID string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "completed"
	if err != nil {
		status = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("run.finished", trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("status", status),
			attribute.Float64("duration_seconds", duration.Seconds()),
		))
	}
}

// RecordStep records one step execution
func (m *BusinessMetrics) RecordStep(ctx context.Context, stepID string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.StepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step.id", stepID),
		attribute.Bool("success", success),
	))
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts the OTel trace ID from context
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
