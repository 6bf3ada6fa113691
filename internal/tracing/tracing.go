// Package tracing sets up an OpenTelemetry tracer provider for procctl.
package tracing

import (
	"context"
	"fmt"
	"os"

	"github.com/buildkite/procctl/version"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	BackendNone          = ""
	BackendOpenTelemetry = "opentelemetry"
)

// ValidBackends lists the values accepted by --tracing-backend.
var ValidBackends = map[string]struct{}{
	BackendNone:          {},
	BackendOpenTelemetry: {},
}

// Stopper flushes and shuts down whatever Start set up.
type Stopper func()

func noopStopper() {}

// Start installs a global tracer provider for the given backend. The OTLP
// protocol comes from OTEL_EXPORTER_OTLP_PROTOCOL, defaulting to grpc.
func Start(ctx context.Context, backend, serviceName string) (Stopper, error) {
	switch backend {
	case BackendNone:
		return noopStopper, nil
	case BackendOpenTelemetry:
	default:
		return noopStopper, fmt.Errorf("invalid tracing backend %q", backend)
	}

	exporter, err := newExporter(ctx, os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if err != nil {
		return noopStopper, err
	}

	resources := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version.Version()),
		attribute.String("procctl.build", version.BuildVersion()),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resources),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		b3.New(),
		&jaeger.Jaeger{},
	))

	return func() {
		ctx := context.Background()
		_ = tracerProvider.ForceFlush(ctx)
		_ = tracerProvider.Shutdown(ctx)
	}, nil
}

func newExporter(ctx context.Context, protocol string) (sdktrace.SpanExporter, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch protocol {
	case "", "grpc":
		exporter, err = otlptracegrpc.New(ctx)
	case "http/protobuf", "http":
		exporter, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	return exporter, nil
}
