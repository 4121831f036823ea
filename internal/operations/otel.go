package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salesdash/internal/infrastructure"
	"salesdash/pkg/contracts/domain"
)

const (
	TracerName = "salesdash.operations"
)

// OperationTracer provides OpenTelemetry instrumentation for runs. A nil
// tracer is valid and records nothing.
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a new run tracer. metrics may be nil.
func NewOperationTracer(metrics *infrastructure.BusinessMetrics) *OperationTracer {
	return &OperationTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// Metrics returns the business instruments, or nil
func (pt *OperationTracer) Metrics() *infrastructure.BusinessMetrics {
	if pt == nil {
		return nil
	}
	return pt.metrics
}

// TraceRun creates a span for the entire run
func (pt *OperationTracer) TraceRun(ctx context.Context, runID string, hp domain.Hyperparameters) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := pt.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.hidden_layers", hp.HiddenLayers),
			attribute.Int("run.neurons", hp.Neurons),
			attribute.String("run.activation", string(hp.Activation)),
			attribute.String("run.optimizer", string(hp.Optimizer)),
			attribute.Float64("run.learning_rate", hp.LearningRate),
			attribute.Int("run.epochs", hp.Epochs),
		),
	)
	if pt.metrics != nil {
		pt.metrics.ActiveRuns.Add(ctx, 1)
	}
	return ctx, span
}

// EndRun closes the run span and records its outcome
func (pt *OperationTracer) EndRun(ctx context.Context, span trace.Span, runID string, duration time.Duration, err error) {
	if pt == nil {
		return
	}
	if pt.metrics != nil {
		pt.metrics.ActiveRuns.Add(ctx, -1)
		pt.metrics.RecordRun(ctx, runID, duration, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}
	span.End()
}

// TraceStep creates a span for one step
func (pt *OperationTracer) TraceStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "run.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)
}

// EndStep closes the step span and records its duration
func (pt *OperationTracer) EndStep(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	if pt == nil {
		return
	}
	if pt.metrics != nil {
		pt.metrics.RecordStep(ctx, stepID, duration, err == nil)
	}
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	if err != nil {
		infrastructure.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.End()
}
