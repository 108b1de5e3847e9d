// Package tracing configures OpenTelemetry spans for pipeline runs.
package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer used by the pipeline.
const InstrumentationName = "github.com/c360studio/activitygraph"

// Config controls span export.
type Config struct {
	// Enabled turns on the stdout exporter. When false spans are not recorded.
	Enabled bool

	ServiceName string
	Version     string

	// Writer receives exported spans. Defaults to os.Stderr.
	Writer io.Writer
}

// Provider owns the tracer of one process.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Setup builds a Provider and installs it as the global tracer provider.
func Setup(cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		return &Provider{
			tracer:   tp.Tracer(InstrumentationName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "activitygraph"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", cfg.Version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Debug("Tracing enabled", "service", serviceName, "exporter", "stdout")
	return &Provider{tracer: tp.Tracer(InstrumentationName), shutdown: tp.Shutdown}, nil
}

// Tracer returns the pipeline tracer. A nil Provider yields a no-op tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return noop.NewTracerProvider().Tracer(InstrumentationName)
	}
	return p.tracer
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.shutdown(ctx)
}
