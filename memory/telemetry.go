package memory

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies spans and metrics emitted by this package.
const instrumentationName = "github.com/zero-day-ai/coachmem/memory"

// instruments holds the OpenTelemetry metric instruments for the adapter.
type instruments struct {
	// operations counts adapter calls by operation and outcome
	operations metric.Int64Counter

	// duration records call latency in milliseconds
	duration metric.Float64Histogram

	// recalled counts messages returned by queries
	recalled metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	inst := &instruments{}
	var err error

	inst.operations, err = meter.Int64Counter(
		"coachmem.operations",
		metric.WithDescription("Number of memory adapter operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}

	inst.duration, err = meter.Float64Histogram(
		"coachmem.operation.duration",
		metric.WithDescription("Memory adapter operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	inst.recalled, err = meter.Int64Counter(
		"coachmem.messages.recalled",
		metric.WithDescription("Number of messages returned by queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recalled counter: %w", err)
	}

	return inst, nil
}

// op tracks one adapter call from span start to metric recording.
type op struct {
	a     *Adapter
	name  string
	start time.Time
	span  trace.Span
}

func (a *Adapter) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *op) {
	ctx, span := a.tracer.Start(ctx, "memory."+name, trace.WithAttributes(attrs...))
	return ctx, &op{a: a, name: name, start: time.Now(), span: span}
}

// end closes the span and records metrics. It returns err unchanged so call
// sites can write `return x, o.end(ctx, err)`.
func (o *op) end(ctx context.Context, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	} else {
		o.span.SetStatus(codes.Ok, "")
	}
	o.span.End()

	attrs := metric.WithAttributes(
		attribute.String("operation", o.name),
		attribute.String("outcome", outcome),
	)
	o.a.metrics.operations.Add(ctx, 1, attrs)
	o.a.metrics.duration.Record(ctx, float64(time.Since(o.start).Microseconds())/1000.0, attrs)
	return err
}
