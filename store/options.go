package store

import (
	"log/slog"
	"time"

	"github.com/zero-day-ai/coachmem/ids"
)

// Option configures a ThreadStore or MessageStore.
type Option func(*options)

type options struct {
	ids    ids.Generator
	now    func() time.Time
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		ids: ids.UUIDv7(),
		now: func() time.Time {
			return time.Now().UTC().Round(0)
		},
		logger: slog.Default(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIDGenerator sets the generator used for new thread and message ids.
func WithIDGenerator(g ids.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithClock sets the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
