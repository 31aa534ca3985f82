package memory

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/coachmem/filter"
	"github.com/zero-day-ai/coachmem/store"
)

// Backend is the subset of backend operations the adapter calls directly.
type Backend interface {
	Ping(ctx context.Context) error
	FlushAll(ctx context.Context) error
}

// QueryResult is the answer to a Query. UIMessages carries the same
// messages as Messages; no UI-specific transformation happens here. Total
// is the number of messages in the thread, selected or not.
type QueryResult struct {
	Messages   []store.Message `json:"messages"`
	UIMessages []store.Message `json:"uiMessages"`
	Total      int64           `json:"total"`
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithConfig sets the adapter configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		a.cfg = cfg
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Adapter) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithMeter sets the meter used for operation metrics.
func WithMeter(meter metric.Meter) Option {
	return func(a *Adapter) {
		if meter != nil {
			a.meter = meter
		}
	}
}

// Adapter is the memory contract consumed by the agent runtime.
type Adapter struct {
	threads  *store.ThreadStore
	messages *store.MessageStore
	backend  Backend

	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *instruments
}

// New creates an Adapter. It fails if the configuration asks for semantic
// recall or holds negative limits.
func New(threads *store.ThreadStore, messages *store.MessageStore, b Backend, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		threads:  threads,
		messages: messages,
		backend:  b,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer(instrumentationName),
		meter:    metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if a.cfg.LastMessages == 0 {
		a.cfg.LastMessages = DefaultLastMessages
	}
	if a.cfg.MaxAllMessages == 0 {
		a.cfg.MaxAllMessages = DefaultMaxAllMessages
	}

	metrics, err := newInstruments(a.meter)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	a.metrics = metrics
	a.logger = a.logger.With("component", "memory")

	return a, nil
}

// Config returns the effective configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// CreateThread creates a thread owned by resourceID.
func (a *Adapter) CreateThread(ctx context.Context, resourceID, title string, metadata map[string]any) (*store.Thread, error) {
	ctx, o := a.begin(ctx, "CreateThread", attribute.String("resource.id", resourceID))
	thread, err := a.threads.CreateThread(ctx, resourceID, title, metadata)
	return thread, o.end(ctx, err)
}

// GetThreadByID returns the thread or nil if it does not exist.
func (a *Adapter) GetThreadByID(ctx context.Context, id string) (*store.Thread, error) {
	ctx, o := a.begin(ctx, "GetThreadByID", attribute.String("thread.id", id))
	thread, err := a.threads.GetThreadByID(ctx, id)
	return thread, o.end(ctx, err)
}

// GetThreadsByResourceID returns the resource's threads, most recently
// updated first.
func (a *Adapter) GetThreadsByResourceID(ctx context.Context, resourceID string) ([]store.Thread, error) {
	ctx, o := a.begin(ctx, "GetThreadsByResourceID", attribute.String("resource.id", resourceID))
	threads, err := a.threads.GetThreadsByResourceID(ctx, resourceID)
	return threads, o.end(ctx, err)
}

// FilterThreads returns the resource's threads for which the CEL expression
// evaluates to true, most recently updated first.
func (a *Adapter) FilterThreads(ctx context.Context, resourceID, expr string) ([]store.Thread, error) {
	ctx, o := a.begin(ctx, "FilterThreads", attribute.String("resource.id", resourceID))

	f, err := filter.Compile(expr)
	if err != nil {
		return nil, o.end(ctx, err)
	}
	threads, err := a.threads.GetThreadsByResourceID(ctx, resourceID)
	if err != nil {
		return nil, o.end(ctx, err)
	}
	threads, err = f.Apply(threads)
	return threads, o.end(ctx, err)
}

// UpdateThread applies update and returns the new thread, or nil if it does
// not exist.
func (a *Adapter) UpdateThread(ctx context.Context, id string, update store.ThreadUpdate) (*store.Thread, error) {
	ctx, o := a.begin(ctx, "UpdateThread", attribute.String("thread.id", id))
	thread, err := a.threads.UpdateThread(ctx, id, update)
	return thread, o.end(ctx, err)
}

// DeleteThread deletes the thread and its messages. It returns false if the
// thread did not exist.
func (a *Adapter) DeleteThread(ctx context.Context, id string) (bool, error) {
	ctx, o := a.begin(ctx, "DeleteThread", attribute.String("thread.id", id))
	ok, err := a.threads.DeleteThread(ctx, id)
	return ok, o.end(ctx, err)
}

// AddMessage appends a message to a thread.
func (a *Adapter) AddMessage(ctx context.Context, threadID string, role store.Role, content string, metadata map[string]any) (*store.Message, error) {
	ctx, o := a.begin(ctx, "AddMessage",
		attribute.String("thread.id", threadID),
		attribute.String("message.role", string(role)),
	)
	msg, err := a.messages.AddMessage(ctx, threadID, role, content, metadata)
	return msg, o.end(ctx, err)
}

// Query returns the messages of a thread selected by sel.
func (a *Adapter) Query(ctx context.Context, threadID string, sel SelectBy) (*QueryResult, error) {
	ctx, o := a.begin(ctx, "Query",
		attribute.String("thread.id", threadID),
		attribute.String("select.kind", sel.Kind()),
		attribute.Int("select.n", sel.N()),
	)

	var (
		messages []store.Message
		err      error
	)
	switch sel.kind {
	case selectFirst:
		messages, err = a.messages.GetFirstMessages(ctx, threadID, a.window(sel.n))
	case selectAll:
		messages, err = a.messages.GetMessages(ctx, threadID, store.Page{Limit: a.cfg.MaxAllMessages})
	default:
		messages, err = a.messages.GetMessages(ctx, threadID, store.Page{Limit: a.window(sel.n)})
	}
	if err != nil {
		return nil, o.end(ctx, err)
	}

	total, err := a.messages.CountMessages(ctx, threadID)
	if err != nil {
		return nil, o.end(ctx, err)
	}

	a.metrics.recalled.Add(ctx, int64(len(messages)), metric.WithAttributes(attribute.String("select.kind", sel.Kind())))
	return &QueryResult{Messages: messages, UIMessages: messages, Total: total}, o.end(ctx, nil)
}

// GetLastMessages returns the count newest messages, newest first. A
// non-positive count uses the configured LastMessages.
func (a *Adapter) GetLastMessages(ctx context.Context, threadID string, count int) ([]store.Message, error) {
	ctx, o := a.begin(ctx, "GetLastMessages", attribute.String("thread.id", threadID))
	messages, err := a.messages.GetLastMessages(ctx, threadID, a.window(count))
	return messages, o.end(ctx, err)
}

// Ping reports whether the backend is reachable. An unreachable backend is
// reported as an error, not as false.
func (a *Adapter) Ping(ctx context.Context) (bool, error) {
	ctx, o := a.begin(ctx, "Ping")
	if err := a.backend.Ping(ctx); err != nil {
		return false, o.end(ctx, err)
	}
	return true, o.end(ctx, nil)
}

// ClearResource deletes every thread owned by resourceID and returns how many
// were removed.
func (a *Adapter) ClearResource(ctx context.Context, resourceID string) (int, error) {
	ctx, o := a.begin(ctx, "ClearResource", attribute.String("resource.id", resourceID))
	n, err := a.threads.DeleteThreadsByResourceID(ctx, resourceID)
	return n, o.end(ctx, err)
}

// Clear deletes every key in the backend, across all resources. It is
// refused with ErrFlushDisabled unless Config.AllowFlush is set.
func (a *Adapter) Clear(ctx context.Context) error {
	ctx, o := a.begin(ctx, "Clear")
	if !a.cfg.AllowFlush {
		a.logger.Warn("refusing to flush backend", "reason", "allow_flush is disabled")
		return o.end(ctx, ErrFlushDisabled)
	}

	if err := a.backend.FlushAll(ctx); err != nil {
		return o.end(ctx, err)
	}
	a.logger.Warn("backend flushed")
	return o.end(ctx, nil)
}

func (a *Adapter) window(n int) int {
	if n <= 0 {
		return a.cfg.LastMessages
	}
	return n
}
