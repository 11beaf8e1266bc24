package observability

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used for spans.
const TracerName = "github.com/crsarena/arena-eval"

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// SampleRatio is the fraction of traces kept; values outside (0, 1]
	// keep everything.
	SampleRatio float64
	// Writer receives exported spans. Nil means stderr.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// SetupTracing installs a global tracer provider and returns it. When
// tracing is disabled a no-op provider is installed.
func SetupTracing(cfg TracingConfig) (trace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "arena-eval"
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)

	return tp, tp.Shutdown, nil
}

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
