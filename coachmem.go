package coachmem

import (
	"context"
	"log/slog"

	"github.com/zero-day-ai/coachmem/backend"
	"github.com/zero-day-ai/coachmem/config"
	"github.com/zero-day-ai/coachmem/ids"
	"github.com/zero-day-ai/coachmem/memory"
	"github.com/zero-day-ai/coachmem/store"
)

// Memory is an opened conversation store. It exposes every memory.Adapter
// operation and owns the backend connection.
type Memory struct {
	*memory.Adapter

	backend backend.Backend
	owned   bool
	cfg     *config.Config
}

// Open opens a Memory using config.Default() adjusted by opts.
func Open(ctx context.Context, opts ...Option) (*Memory, error) {
	return OpenConfig(ctx, config.Default(), opts...)
}

// OpenConfig validates cfg, connects to its backend unless WithBackend is
// given, and wires the stores and the adapter.
func OpenConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Memory, error) {
	const op = "coachmem.Open"

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if cfg == nil {
		cfg = config.Default()
	}
	copied := *cfg
	cfg = &copied
	if o.redisURL != "" {
		cfg.Redis.URL = o.redisURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, wrap(op, KindConfiguration, err)
	}

	gen := o.ids
	if gen == nil {
		var err error
		if gen, err = ids.Parse(cfg.IDs.Generator); err != nil {
			return nil, wrap(op, KindConfiguration, err)
		}
	}

	b, owned := o.backend, false
	if b == nil {
		rb, err := backend.NewRedisBackend(backend.RedisOptions{
			URL:            cfg.Redis.URL,
			ConnectTimeout: cfg.Redis.GetConnectTimeout(),
			ReadTimeout:    cfg.Redis.GetReadTimeout(),
			WriteTimeout:   cfg.Redis.GetWriteTimeout(),
			PoolSize:       cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, wrap(op, KindNetwork, err)
		}
		b, owned = rb, true
	}

	storeOpts := []store.Option{
		store.WithIDGenerator(gen),
		store.WithClock(o.clock),
		store.WithLogger(o.logger),
	}
	threads := store.NewThreadStore(b, storeOpts...)
	messages := store.NewMessageStore(b, threads, storeOpts...)

	adapter, err := memory.New(threads, messages, b,
		memory.WithConfig(cfg.Memory),
		memory.WithLogger(o.logger),
		memory.WithTracer(o.tracer),
		memory.WithMeter(o.meter),
	)
	if err != nil {
		if owned {
			_ = b.Close()
		}
		return nil, wrap(op, KindConfiguration, err)
	}

	if _, err := adapter.Ping(ctx); err != nil {
		if owned {
			_ = b.Close()
		}
		return nil, wrap(op, KindOf(err), err)
	}

	o.logger.Info("memory opened",
		"component", "coachmem",
		"env", cfg.Env,
		"id_generator", cfg.IDs.Generator,
	)

	return &Memory{Adapter: adapter, backend: b, owned: owned, cfg: cfg}, nil
}

// Settings returns the configuration the Memory was opened with.
func (m *Memory) Settings() *config.Config {
	return m.cfg
}

// Close releases the backend connection if Open created it.
func (m *Memory) Close() error {
	if !m.owned {
		return nil
	}
	return m.backend.Close()
}
