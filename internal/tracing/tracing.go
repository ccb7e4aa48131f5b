// Package tracing configures OpenTelemetry with a Jaeger exporter.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds tracing configuration.
type Config struct {
	Enabled     bool
	Endpoint    string // Jaeger collector, e.g. http://localhost:14268/api/traces
	ServiceName string
	Environment string
}

// Tracer wraps OpenTelemetry tracer functionality.
type Tracer struct {
	tracer   trace.Tracer
	provider *tracesdk.TracerProvider
}

var globalTracer *Tracer

// InitTracing installs the global tracer provider. When disabled a no-op
// tracer is installed instead.
func InitTracing(cfg Config) (*Tracer, error) {
	if !cfg.Enabled {
		globalTracer = &Tracer{tracer: noop.NewTracerProvider().Tracer("noop")}
		return globalTracer, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "offer-pipeline-api"
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracer = &Tracer{tracer: tp.Tracer(cfg.ServiceName), provider: tp}
	return globalTracer, nil
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes and stops the exporter
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns the global tracer, or a no-op tracer before InitTracing
func GetTracer() *Tracer {
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("noop")}
	}
	return globalTracer
}

// StartSpan starts a span on the global tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().StartSpan(ctx, name, trace.WithAttributes(attrs...))
}
