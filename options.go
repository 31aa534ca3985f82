package coachmem

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/coachmem/backend"
	"github.com/zero-day-ai/coachmem/ids"
)

// Option configures Open.
type Option func(*options)

type options struct {
	redisURL string
	backend  backend.Backend
	ids      ids.Generator
	clock    func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
}

// WithRedisURL overrides the configured Redis connection string.
func WithRedisURL(url string) Option {
	return func(o *options) {
		o.redisURL = url
	}
}

// WithBackend uses b instead of dialing Redis. Close does not close a
// backend supplied this way.
func WithBackend(b backend.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithIDGenerator overrides the configured id scheme.
func WithIDGenerator(g ids.Generator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithClock sets the time source for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithLogger sets a custom logger.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for operation metrics.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}
