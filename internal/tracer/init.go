// Package tracer installs the global OpenTelemetry tracer provider that
// otelfiber reports request spans to.
package tracer

import (
	"context"
	"fmt"

	"buddyboard-be/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Init exports spans over OTLP/HTTP when tracing is enabled. With tracing
// disabled the global provider is left alone and the returned shutdown is a
// no-op.
func Init(ctx context.Context, cfg config.TracingConfig, instance string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg.ServiceName, instance)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newResource(service, instance string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(service),
		attribute.String("service.instance.id", instance),
	)
}
