// Command coachmemd serves the conversation memory over HTTP, with a gRPC
// health endpoint for orchestrators.
//
// Usage:
//
//	coachmemd [-config path]
//
// Configuration is read from the optional YAML file, a .env file and the
// environment; see package config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zero-day-ai/coachmem"
	"github.com/zero-day-ai/coachmem/config"
	"github.com/zero-day-ai/coachmem/health"
	"github.com/zero-day-ai/coachmem/httpapi"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// slowPing marks the backend degraded.
const slowPing = 250 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to coachmem.yaml or a directory containing it")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "coachmemd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := newResource(ctx, logger)
	tp := newTracerProvider(res, logger)
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	metrics := httpapi.NewMetrics()
	mp, err := newMeterProvider(res, metrics.Registry())
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	defer func() {
		_ = mp.Shutdown(context.Background())
	}()

	mem, err := coachmem.OpenConfig(ctx, cfg,
		coachmem.WithLogger(logger),
		coachmem.WithTracer(tp.Tracer("github.com/zero-day-ai/coachmem")),
		coachmem.WithMeter(mp.Meter("github.com/zero-day-ai/coachmem")),
	)
	if err != nil {
		return err
	}
	defer mem.Close()

	grpcSrv, err := newGRPCServer(cfg.GRPC.Addr, cfg.HTTP.GetShutdownTimeout(), logger)
	if err != nil {
		return err
	}

	monitor := health.NewMonitor(
		func(ctx context.Context) health.Status {
			return health.BackendCheck(ctx, mem, slowPing)
		},
		cfg.GRPC.GetHealthInterval(),
		grpcSrv.setStatus,
		logger,
	)
	go monitor.Run(ctx)

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.New(mem,
			httpapi.WithLogger(logger),
			httpapi.WithMetrics(metrics),
			httpapi.WithHealth(func(ctx context.Context) health.Status {
				return monitor.Report()
			}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		if err := grpcSrv.serve(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("coachmemd started",
		"version", version,
		"env", cfg.Env,
		"http_addr", cfg.HTTP.Addr,
		"grpc_addr", grpcSrv.addr().String(),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down gracefully")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeout())
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcSrv.gracefulStop()

	return runErr
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsJSON() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
