package main

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// logSpanExporter writes finished spans to the logger at debug level.
type logSpanExporter struct {
	logger *slog.Logger
}

func newLogSpanExporter(logger *slog.Logger) *logSpanExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &logSpanExporter{logger: logger.With("component", "tracing")}
}

// ExportSpans logs each span. It never fails so the pipeline keeps running.
func (e *logSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		traceID := sc.TraceID()
		spanID := sc.SpanID()

		args := []any{
			"span", span.Name(),
			"trace_id", hex.EncodeToString(traceID[:]),
			"span_id", hex.EncodeToString(spanID[:]),
			"duration", span.EndTime().Sub(span.StartTime()),
		}
		for _, attr := range span.Attributes() {
			args = append(args, string(attr.Key), attr.Value.Emit())
		}

		if span.Status().Code == codes.Error {
			e.logger.Debug("span failed", append(args, "error", span.Status().Description)...)
			continue
		}
		e.logger.Debug("span finished", args...)
	}
	return nil
}

// Shutdown is a no-op.
func (e *logSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

func newResource(ctx context.Context, logger *slog.Logger) *resource.Resource {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("coachmemd"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		return resource.Default()
	}
	return res
}

// newTracerProvider creates a TracerProvider that logs spans through logger.
func newTracerProvider(res *resource.Resource, logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(newLogSpanExporter(logger))),
		sdktrace.WithResource(res),
	)
}

// newMeterProvider creates a MeterProvider whose instruments are exposed
// through reg, next to the HTTP collectors.
func newMeterProvider(res *resource.Resource, reg prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}
