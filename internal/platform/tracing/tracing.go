// Package tracing builds the OpenTelemetry tracer provider used by the
// registration service spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"nftform/internal/platform/config"
)

const (
	ExporterNone    = "none"
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
)

// Provider pairs a tracer provider with the function that flushes it.
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Shutdown flushes buffered spans. Safe on the no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

type errorHandler struct {
	logger *slog.Logger
}

func (h errorHandler) Handle(err error) {
	h.logger.Warn("trace export failed", "error", err)
}

// New installs a provider as the otel global and returns it. The console
// exporter writes to stdout; tests pass their own writer through newProvider.
func New(ctx context.Context, cfg config.Tracing, logger *slog.Logger) (*Provider, error) {
	p, err := newProvider(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(errorHandler{logger: logger})
	logger.Info("tracing configured", "exporter", cfg.Exporter, "sample_ratio", cfg.SampleRatio)
	return p, nil
}

func newProvider(ctx context.Context, cfg config.Tracing, console io.Writer) (*Provider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "", ExporterNone:
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	case ExporterConsole:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(console))
	case ExporterOTLP:
		exporter, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTEL_TRACES_EXPORTER %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", cfg.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	)
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}
