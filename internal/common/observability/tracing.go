package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracing wraps the tracer used for per-stage spans.
type Tracing struct {
	tracerProvider *tracesdk.TracerProvider
	tracer         trace.Tracer
}

// NewTracing wires a Jaeger-backed tracer provider. Pass an empty endpoint
// to get a no-op Tracing that still hands out valid spans.
func NewTracing(serviceName, jaegerEndpoint string) (*Tracing, error) {
	if jaegerEndpoint == "" {
		return &Tracing{tracer: otel.Tracer(serviceName)}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	provider := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(provider)

	return &Tracing{
		tracerProvider: provider,
		tracer:         provider.Tracer(serviceName),
	}, nil
}

// StartStageSpan opens a span for a pipeline stage tagged with the request id.
func (t *Tracing) StartStageSpan(ctx context.Context, stage, requestID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, stage, trace.WithAttributes(
		attribute.String("pipeline.stage", stage),
		attribute.String("pipeline.request_id", requestID),
	))
}

func (t *Tracing) Shutdown() {
	if t.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		t.tracerProvider.Shutdown(ctx)
	}
}
