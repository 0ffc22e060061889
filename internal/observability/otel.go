// Package observability sets up OpenTelemetry tracing for the deals
// processes. Both the API server and the ingestion worker export spans over
// OTLP/gRPC; the resource carries the process role so traces from the two
// binaries can be told apart in one backend.
//
// Spans are produced by otelgin on the HTTP edge, by the GORM tracing plugin
// on every query, and by the services' own otel.Tracer calls.
package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-deals-backend/internal/config"
)

// Process identifies the binary being traced.
type Process struct {
	// Role is "api" or "ingest".
	Role    string
	Version string
}

// Shutdown flushes pending spans and stops the exporter.
type Shutdown func(context.Context) error

// newExporter is replaced in tests with an in-memory exporter.
var newExporter = func(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

// SetupOTel installs a global tracer provider and W3C propagators. When
// tracing is disabled it changes nothing and returns a no-op Shutdown.
// Globals are only replaced once every part was built.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, proc Process) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		return nil, errors.New("observability: service name is required")
	}

	res, err := Resource(cfg.ServiceName, proc)
	if err != nil {
		return nil, err
	}
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Resource describes the traced process.
func Resource(service string, proc Process) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(service)}
	if proc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(proc.Version))
	}
	if proc.Role != "" {
		attrs = append(attrs, attribute.String("deals.process", proc.Role))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// Sampler honours the parent decision and samples root spans at ratio,
// clamped to [0, 1].
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
